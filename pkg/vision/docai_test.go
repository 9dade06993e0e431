package vision

import (
	"bytes"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentToJSON(t *testing.T) {
	out, err := DocumentToJSON(&documentaipb.Document{Text: "ABC1234567"})
	require.NoError(t, err)
	assert.Contains(t, out, `"text"`)
	assert.Contains(t, out, "ABC1234567")
}

func TestDebugWriterReceivesRawResponses(t *testing.T) {
	var buf bytes.Buffer
	d := &DocumentAI{}
	d.SetDebugWriter(&buf)

	d.dumpDebug(&documentaipb.Document{Text: "राम कुमार"})
	assert.Contains(t, buf.String(), "राम कुमार")
}

func TestDebugDumpWithoutWriterIsNoOp(t *testing.T) {
	d := &DocumentAI{}
	d.dumpDebug(&documentaipb.Document{Text: "x"})
}
