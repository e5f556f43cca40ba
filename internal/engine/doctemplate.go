package engine

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/remap/internal/ir"
)

// templateMainPart is the document body of a Word template.
const templateMainPart = "word/document.xml"

// upsertDocumentTemplate rewrites the type code embedded in a template of a
// custom type, then writes it.
func (e *Engine) upsertDocumentTemplate(ctx context.Context, rec, target *ir.Record) (Outcome, error) {
	if err := e.rerouteTemplate(rec); err != nil {
		return OutcomeFailed, at("Replacing Document Type code", err)
	}
	if target != nil {
		return OutcomeUpdated, at("Updating Document Template", e.target.Update(ctx, rec))
	}
	_, err := e.target.Create(ctx, rec)
	return OutcomeCreated, at("Inserting Document Template", err)
}

// rerouteTemplate points a template's content at the target's type code of
// its associated type. Standard types keep their codes across environments
// and are left alone. The record changes only when the content did.
func (e *Engine) rerouteTemplate(rec *ir.Record) error {
	assocName, ok := rec.StringValue("associatedentitytypecode")
	if !ok || strings.TrimSpace(assocName) == "" {
		return nil
	}
	assoc, err := e.catalog.Get(assocName)
	if err != nil {
		return err
	}
	if !assoc.IsCustom {
		return nil
	}

	content, ok := rec.StringValue("content")
	if !ok || content == "" {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return fmt.Errorf("decode template content: %w", err)
	}

	out, changed, err := RerouteTypeCode(data, assocName, assoc.TypeCode)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	rec.Set("content", ir.String(base64.StdEncoding.EncodeToString(out)))
	rec.Set("associatedentitytypecode", ir.Int(assoc.TypeCode))
	return nil
}

// RerouteTypeCode rewrites the document-template URNs of entity inside a
// Word document package to carry typeCode. The main document part is
// rewritten first; custom XML parts are rewritten only if the main part
// changed. It reports whether anything changed.
func RerouteTypeCode(data []byte, entity string, typeCode int) ([]byte, bool, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, false, fmt.Errorf("open template package: %w", err)
	}

	pattern := regexp.MustCompile(`urn:microsoft-crm/document-template/` + regexp.QuoteMeta(entity) + `/(.*?)(?:/|$)`)
	replacement := "urn:microsoft-crm/document-template/" + entity + "/" + strconv.Itoa(typeCode) + "/"

	parts := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		b, err := readZipFile(f)
		if err != nil {
			return nil, false, err
		}
		parts[f.Name] = b
	}

	main, ok := parts[templateMainPart]
	if !ok {
		return nil, false, fmt.Errorf("template package has no %s", templateMainPart)
	}
	rewritten := pattern.ReplaceAllLiteral(main, []byte(replacement))
	if bytes.Equal(main, rewritten) {
		return data, false, nil
	}
	parts[templateMainPart] = rewritten

	for name, b := range parts {
		if isCustomXMLPart(name) && pattern.Match(b) {
			parts[name] = pattern.ReplaceAllLiteral(b, []byte(replacement))
		}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		hdr := f.FileHeader
		w, err := zw.CreateHeader(&hdr)
		if err != nil {
			return nil, false, fmt.Errorf("write %s: %w", f.Name, err)
		}
		if _, err := w.Write(parts[f.Name]); err != nil {
			return nil, false, fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, false, fmt.Errorf("write template package: %w", err)
	}
	return buf.Bytes(), true, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return b, nil
}

// isCustomXMLPart matches customXml/item1.xml but not its itemProps parts.
func isCustomXMLPart(name string) bool {
	return strings.HasPrefix(name, "customXml/item") &&
		!strings.HasPrefix(name, "customXml/itemProps") &&
		strings.HasSuffix(name, ".xml")
}
