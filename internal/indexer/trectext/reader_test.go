package trectext

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const collection = `<DOC>
<DOCNO> lorem </DOCNO>
<TEXT>
Lorem ipsum dolor sit amet
</TEXT>
</DOC>
<DOC><DOCNO>two</DOCNO>
<HEADLINE>ignored headline</HEADLINE>
<TEXT>first</TEXT>
<TEXT>second</TEXT>
</DOC>
<DOC>
<DOCNO>bare</DOCNO>
<P>just <B>markup</B></P>
</DOC>
`

func TestReader(t *testing.T) {
	r := NewReader(strings.NewReader(collection), "test")

	d, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "lorem", d.ExternalID)
	assert.Equal(t, "Lorem ipsum dolor sit amet", d.Text)

	d, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "two", d.ExternalID)
	assert.Equal(t, "first\nsecond", d.Text)

	d, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "bare", d.ExternalID)
	assert.Equal(t, []string{"just", "markup"}, strings.Fields(d.Text))

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReaderErrors(t *testing.T) {
	_, err := NewReader(strings.NewReader("<DOC>\n<TEXT>x</TEXT>\n</DOC>\n"), "nodocno").Next()
	assert.ErrorContains(t, err, "without <DOCNO>")

	_, err = NewReader(strings.NewReader("<DOC>\n<DOCNO>a</DOCNO>\n"), "open").Next()
	assert.ErrorContains(t, err, "unterminated")
}
