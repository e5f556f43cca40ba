package engine

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/remap/internal/ir"
	"github.com/roach88/remap/internal/testutil"
)

type part struct {
	name, body string
}

func buildPackage(t *testing.T, parts ...part) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.Create(p.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func readPackage(t *testing.T, data []byte) []part {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var out []part
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out = append(out, part{f.Name, string(b)})
	}
	return out
}

const projectURN = "urn:microsoft-crm/document-template/new_project/10010/"

func TestRerouteTypeCode(t *testing.T) {
	data := buildPackage(t,
		part{"[Content_Types].xml", "<Types/>"},
		part{"word/document.xml", `<w:document xmlns:ns0="` + projectURN + `"/>`},
		part{"customXml/item1.xml", `<ns0:new_project xmlns:ns0="` + projectURN + `"/>`},
		part{"customXml/itemProps1.xml", `<ds:schemaRef ds:uri="` + projectURN + `"/>`},
	)

	out, changed, err := RerouteTypeCode(data, "new_project", 10005)
	require.NoError(t, err)
	require.True(t, changed)

	const rerouted = "urn:microsoft-crm/document-template/new_project/10005/"
	assert.Equal(t, []part{
		{"[Content_Types].xml", "<Types/>"},
		{"word/document.xml", `<w:document xmlns:ns0="` + rerouted + `"/>`},
		{"customXml/item1.xml", `<ns0:new_project xmlns:ns0="` + rerouted + `"/>`},
		{"customXml/itemProps1.xml", `<ds:schemaRef ds:uri="` + projectURN + `"/>`},
	}, readPackage(t, out))
}

func TestRerouteTypeCode_Unchanged(t *testing.T) {
	data := buildPackage(t,
		part{"word/document.xml", `<w:document xmlns:ns0="urn:microsoft-crm/document-template/new_project/10005/"/>`},
		part{"customXml/item1.xml", `<x xmlns="` + projectURN + `"/>`},
	)

	out, changed, err := RerouteTypeCode(data, "new_project", 10005)
	require.NoError(t, err)
	assert.False(t, changed)
	// custom parts are only touched when the main part changed
	assert.Equal(t, data, out)
}

func TestRerouteTypeCode_Errors(t *testing.T) {
	_, _, err := RerouteTypeCode([]byte("not a zip"), "new_project", 1)
	assert.Error(t, err)

	_, _, err = RerouteTypeCode(buildPackage(t, part{"other.xml", "x"}), "new_project", 1)
	assert.ErrorContains(t, err, "word/document.xml")
}

func TestImport_DocumentTemplateOfCustomType(t *testing.T) {
	f := prepared(t)
	content := buildPackage(t, part{"word/document.xml", `<w:document xmlns:ns0="` + projectURN + `"/>`})
	src := rec("documenttemplate", testutil.ID(70),
		"name", ir.String("Project summary"),
		"associatedentitytypecode", ir.String("new_project"),
		"content", ir.String(base64.StdEncoding.EncodeToString(content)))

	res, err := f.eng.Import(context.Background(), batch(src), nil, false)
	require.NoError(t, err)
	assert.Equal(t, []Outcome{OutcomeCreated}, res.Outcomes)

	got := f.stored(t, "documenttemplate", src.ID)
	assert.True(t, ir.Equal(ir.Int(10005), got.Get("associatedentitytypecode")))
	text, ok := got.StringValue("content")
	require.True(t, ok)
	data, err := base64.StdEncoding.DecodeString(text)
	require.NoError(t, err)
	assert.Contains(t, readPackage(t, data)[0].body, "/new_project/10005/")
}

func TestImport_DocumentTemplateOfStandardTypeUntouched(t *testing.T) {
	f := prepared(t)
	src := rec("documenttemplate", testutil.ID(71),
		"name", ir.String("Account summary"),
		"associatedentitytypecode", ir.String("account"),
		"content", ir.String("bm90IGEgemlw"))

	_, err := f.eng.Import(context.Background(), batch(src), nil, false)
	require.NoError(t, err)
	assert.Equal(t, ir.String("bm90IGEgemlw"), f.stored(t, "documenttemplate", src.ID).Get("content"))
}
