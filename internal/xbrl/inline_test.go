package xbrl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inlineDoc = `<html xmlns:ix="http://www.xbrl.org/2013/inlineXBRL">
<body>
<div style="display:none">
  <xbrli:context id="AsOf">
    <xbrli:entity><xbrli:identifier scheme="tw">2330</xbrli:identifier></xbrli:entity>
    <xbrli:period><xbrli:instant>2024-06-30</xbrli:instant></xbrli:period>
  </xbrli:context>
  <xbrli:context id="YTD">
    <xbrli:entity><xbrli:identifier scheme="tw">2330</xbrli:identifier></xbrli:entity>
    <xbrli:period>
      <xbrli:startDate>2024-01-01</xbrli:startDate>
      <xbrli:endDate>2024-06-30</xbrli:endDate>
    </xbrli:period>
  </xbrli:context>
</div>
<table>
<tr><td>資產總計</td>
    <td><ix:nonFraction name="tifrs-bsci-cr:Assets" contextRef="AsOf"
        unitRef="TWD" scale="3" decimals="-3">5,500,000</ix:nonFraction></td></tr>
<tr><td>處分損失</td>
    <td><ix:nonFraction name="tifrs-bsci-cr:DisposalLoss" contextRef="YTD"
        unitRef="TWD" sign="-" scale="0">1,234</ix:nonFraction></td></tr>
<tr><td>備註</td>
    <td><ix:nonNumeric name="tifrs-notes:AuditOpinion" contextRef="YTD">無保留意見</ix:nonNumeric></td></tr>
<tr><td>停業單位</td>
    <td><ix:nonFraction name="tifrs-bsci-cr:DiscontinuedUnits" contextRef="YTD"
        unitRef="TWD">-</ix:nonFraction></td></tr>
</table>
</body></html>`

func TestIsInlineXBRL(t *testing.T) {
	assert.True(t, IsInlineXBRL([]byte(inlineDoc)))
	assert.False(t, IsInlineXBRL([]byte("<html><body>查無資料</body></html>")))
	assert.False(t, IsInlineXBRL([]byte("PK\x03\x04zipbytes")))
}

func TestParseInlineFacts(t *testing.T) {
	facts, err := ParseInlineFacts([]byte(inlineDoc))
	require.NoError(t, err)
	require.Len(t, facts, 4)

	assets := facts[0]
	assert.Equal(t, "Assets", assets.Concept)
	assert.Equal(t, "AsOf", assets.ContextRef)
	assert.Equal(t, "TWD", assets.UnitRef)
	require.NotNil(t, assets.Numeric)
	// scale=3 multiplies the displayed thousands back to units.
	assert.Equal(t, "5500000000", assets.Numeric.String())
	require.NotNil(t, assets.Decimals)
	assert.Equal(t, -3, *assets.Decimals)

	loss := facts[1]
	require.NotNil(t, loss.Numeric)
	assert.Equal(t, "-1234", loss.Numeric.String())

	opinion := facts[2]
	assert.Equal(t, "AuditOpinion", opinion.Concept)
	assert.Nil(t, opinion.Numeric)
	assert.Equal(t, "無保留意見", opinion.Text)

	// A dash cell is a present fact with no numeric value.
	dash := facts[3]
	assert.Equal(t, "DiscontinuedUnits", dash.Concept)
	assert.Nil(t, dash.Numeric)
}

func TestParseInlineContexts(t *testing.T) {
	contexts, err := ParseInlineContexts([]byte(inlineDoc))
	require.NoError(t, err)
	require.Len(t, contexts, 2)

	asOf := contexts["AsOf"]
	assert.Equal(t, "2330", asOf.Entity)
	require.NotNil(t, asOf.Instant)
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), *asOf.Instant)

	ytd := contexts["YTD"]
	assert.False(t, ytd.IsInstant())
	require.NotNil(t, ytd.Start)
	require.NotNil(t, ytd.End)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *ytd.Start)
}

func TestParseInlineFactsSkipsUnnamed(t *testing.T) {
	const doc = `<html><body>
	<ix:nonFraction contextRef="c">1</ix:nonFraction>
	<ix:nonFraction name="p:Value">2</ix:nonFraction>
	</body></html>`
	facts, err := ParseInlineFacts([]byte(doc))
	require.NoError(t, err)
	assert.Empty(t, facts)
}
