package extract

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/infrastructure/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	res  command.Result
	err  error
	args []string
}

func (s *stubRunner) Run(ctx context.Context, name string, args ...string) (command.Result, error) {
	s.args = args
	return s.res, s.err
}

func writeDOCX(t *testing.T, documentXML string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notes.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?><Types/>`))
	require.NoError(t, err)
	if documentXML != "" {
		w, err = zw.Create(docxBody)
		require.NoError(t, err)
		_, err = w.Write([]byte(documentXML))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

const sampleDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Quarterly</w:t></w:r><w:r><w:t xml:space="preserve"> review</w:t></w:r></w:p>
<w:p></w:p>
<w:p><w:r><w:t>Revenue</w:t><w:tab/><w:t>up 12%</w:t></w:r></w:p>
<w:p><w:r><w:t>Line one</w:t><w:br/><w:t>Line two</w:t></w:r></w:p>
</w:body>
</w:document>`

func TestExtractText_DOCX(t *testing.T) {
	path := writeDOCX(t, sampleDocument)

	text, err := New().ExtractText(context.Background(), path, "docx")
	require.NoError(t, err)
	assert.Equal(t, "Quarterly review\n\nRevenue\tup 12%\nLine one\nLine two", text)
}

func TestExtractText_DOCXWithoutBodyIsPermanent(t *testing.T) {
	path := writeDOCX(t, "")

	_, err := New().ExtractText(context.Background(), path, "docx")
	require.Error(t, err)
	assert.False(t, domain.IsRetryable(err))
}

func TestExtractText_DOCXNotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.docx")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0644))

	_, err := New().ExtractText(context.Background(), path, "docx")
	require.Error(t, err)
	assert.False(t, domain.IsRetryable(err))
}

func TestExtractText_PDF(t *testing.T) {
	runner := &stubRunner{res: command.Result{Stdout: "Page one   \n\n\n\nPage two\f\n"}}

	text, err := NewWithRunner(runner).ExtractText(context.Background(), "/tmp/in.pdf", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "Page one\n\nPage two", text)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8", "/tmp/in.pdf", "-"}, runner.args)
}

func TestExtractText_PDFErrors(t *testing.T) {
	tests := []struct {
		name      string
		res       command.Result
		err       error
		retryable bool
	}{
		{"scanned pdf without text", command.Result{Stdout: "  \f"}, nil, false},
		{"corrupt pdf", command.Result{ExitCode: 1, Stderr: "Syntax Error: Couldn't read xref table"}, errors.New("exit status 1"), false},
		{"missing binary", command.Result{ExitCode: -1}, &exec.Error{Name: "pdftotext", Err: exec.ErrNotFound}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWithRunner(&stubRunner{res: tt.res, err: tt.err}).ExtractText(context.Background(), "/tmp/in.pdf", "pdf")
			require.Error(t, err)
			assert.Equal(t, tt.retryable, domain.IsRetryable(err))
		})
	}
}

func TestExtractText_UnsupportedFormat(t *testing.T) {
	_, err := New().ExtractText(context.Background(), "/tmp/a.odt", "odt")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}
