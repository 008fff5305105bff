package xbrl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const instanceDoc = `<?xml version="1.0" encoding="UTF-8"?>
<xbrli:xbrl xmlns:xbrli="http://www.xbrl.org/2003/instance"
    xmlns:tifrs="http://www.xbrl.org/tifrs">
  <xbrli:context id="AsOf">
    <xbrli:entity>
      <xbrli:identifier scheme="http://www.twse.com.tw">2330</xbrli:identifier>
    </xbrli:entity>
    <xbrli:period>
      <xbrli:instant>2024-06-30</xbrli:instant>
    </xbrli:period>
  </xbrli:context>
  <xbrli:context id="YTD">
    <xbrli:entity>
      <xbrli:identifier scheme="http://www.twse.com.tw">2330</xbrli:identifier>
    </xbrli:entity>
    <xbrli:period>
      <xbrli:startDate>2024-01-01</xbrli:startDate>
      <xbrli:endDate>2024-06-30</xbrli:endDate>
    </xbrli:period>
  </xbrli:context>
  <xbrli:context id="Segment">
    <xbrli:entity>
      <xbrli:identifier scheme="http://www.twse.com.tw">2330</xbrli:identifier>
    </xbrli:entity>
    <xbrli:period>
      <xbrli:instant>2024-06-30</xbrli:instant>
    </xbrli:period>
    <xbrli:scenario><tifrs:Member>Wafer</tifrs:Member></xbrli:scenario>
  </xbrli:context>
  <xbrli:unit id="TWD"><xbrli:measure>iso4217:TWD</xbrli:measure></xbrli:unit>
  <tifrs:Assets contextRef="AsOf" unitRef="TWD" decimals="-3">5,500,000</tifrs:Assets>
  <tifrs:Revenue contextRef="YTD" unitRef="TWD">1,266,154</tifrs:Revenue>
  <tifrs:NotesTextBlock contextRef="YTD">依國際財務報導準則編製</tifrs:NotesTextBlock>
  <tifrs:BadNumber contextRef="YTD" unitRef="TWD">n/a--</tifrs:BadNumber>
</xbrli:xbrl>`

func TestParseInstanceContexts(t *testing.T) {
	contexts, err := ParseInstanceContexts([]byte(instanceDoc))
	require.NoError(t, err)
	require.Len(t, contexts, 3)

	asOf := contexts["AsOf"]
	assert.Equal(t, "2330", asOf.Entity)
	assert.True(t, asOf.IsInstant())
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), *asOf.Instant)
	assert.Empty(t, asOf.Scenario)

	ytd := contexts["YTD"]
	assert.False(t, ytd.IsInstant())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *ytd.Start)
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), *ytd.End)

	// Scenario markup survives verbatim but is never interpreted.
	assert.Contains(t, string(contexts["Segment"].Scenario), "Wafer")
}

func TestParseInstanceFacts(t *testing.T) {
	facts, err := ParseInstanceFacts([]byte(instanceDoc))
	require.NoError(t, err)
	require.Len(t, facts, 4)

	assets := facts[0]
	assert.Equal(t, "Assets", assets.Concept)
	assert.Equal(t, "AsOf", assets.ContextRef)
	assert.Equal(t, "TWD", assets.UnitRef)
	require.NotNil(t, assets.Numeric)
	assert.Equal(t, "5500000", assets.Numeric.String())
	require.NotNil(t, assets.Decimals)
	assert.Equal(t, -3, *assets.Decimals)

	revenue := facts[1]
	assert.Equal(t, "Revenue", revenue.Concept)
	require.NotNil(t, revenue.Numeric)
	assert.Equal(t, "1266154", revenue.Numeric.String())

	notes := facts[2]
	assert.Equal(t, "NotesTextBlock", notes.Concept)
	assert.Nil(t, notes.Numeric)
	assert.Equal(t, "依國際財務報導準則編製", notes.Text)

	// Unparseable numeric text keeps the fact but leaves the value nil.
	bad := facts[3]
	assert.Nil(t, bad.Numeric)
	assert.Equal(t, "n/a--", bad.Text)
}

func TestParseInstanceInvalidXML(t *testing.T) {
	_, err := ParseInstanceFacts([]byte("<xbrli:xbrl><broken"))
	assert.ErrorIs(t, err, ErrParse)

	_, err = ParseInstanceContexts([]byte("not xml at all <<<"))
	assert.ErrorIs(t, err, ErrParse)
}
