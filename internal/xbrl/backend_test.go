package xbrl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const backendLabelLinkbase = `<linkbase xmlns:xlink="http://www.w3.org/1999/xlink" xmlns:xml="http://www.w3.org/XML/1998/namespace">
  <labelLink>
    <loc xlink:label="loc_a" xlink:href="t.xsd#p_Assets"/>
    <labelArc xlink:from="loc_a" xlink:to="lab_a"/>
    <label xlink:label="lab_a" xml:lang="zh-TW">資產總計</label>
  </labelLink>
</linkbase>`

func TestParserParseZipWithInlineInstance(t *testing.T) {
	content := buildZip(t, map[string]string{
		"tifrs-fr1-m1-ci-cr-2330-2024Q2.htm": inlineDoc,
		"tifrs_cal.xml":                      calcLinkbase,
		"tifrs_lab.xml":                      backendLabelLinkbase,
	})

	pkg, err := NewParser(nil).Parse(content)
	require.NoError(t, err)

	assert.Len(t, pkg.Facts, 4)
	assert.Len(t, pkg.Contexts, 2)
	assert.NotEmpty(t, pkg.Calculation["GrossProfit"])
	assert.Equal(t, "資產總計", pkg.Labels.Label("Assets", "zh", ""))
}

func TestParserParseBareInlineDocument(t *testing.T) {
	pkg, err := NewParser(nil).Parse([]byte(inlineDoc))
	require.NoError(t, err)

	assert.Len(t, pkg.Facts, 4)
	assert.Len(t, pkg.Contexts, 2)
	// No linkbases travel with a bare document.
	assert.Empty(t, pkg.Calculation)
	assert.Equal(t, 0, pkg.Labels.Len())
}

func TestParserFallsBackToNativeInstance(t *testing.T) {
	content := buildZip(t, map[string]string{
		"instance.xml": instanceDoc,
	})

	pkg, err := NewParser(nil).Parse(content)
	require.NoError(t, err)
	assert.Len(t, pkg.Facts, 4)
	assert.Len(t, pkg.Contexts, 3)
}

func TestParserDiscardsFactsWithoutContexts(t *testing.T) {
	const doc = `<html>
	<div>
	  <xbrli:context id="known">
	    <xbrli:entity><xbrli:identifier scheme="tw">2330</xbrli:identifier></xbrli:entity>
	    <xbrli:period><xbrli:instant>2024-06-30</xbrli:instant></xbrli:period>
	  </xbrli:context>
	</div>
	<ix:nonFraction name="p:Kept" contextRef="known" unitRef="TWD">1</ix:nonFraction>
	<ix:nonFraction name="p:Orphan" contextRef="ghost" unitRef="TWD">2</ix:nonFraction>
	</html>`

	pkg, err := NewParser(nil).Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, pkg.Facts, 1)
	assert.Equal(t, "Kept", pkg.Facts[0].Concept)
	require.Len(t, pkg.Warnings, 1)
	assert.Contains(t, pkg.Warnings[0], "ghost")
}

func TestParserRejectsUnrecognisedContent(t *testing.T) {
	_, err := NewParser(nil).Parse([]byte("<html><body>查無資料</body></html>"))
	assert.ErrorIs(t, err, ErrMalformedPackage)
}
