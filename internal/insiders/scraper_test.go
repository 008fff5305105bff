package insiders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formosa-data/formosa/internal/mops"
)

const pledgePage = `
<html><body>
<table>
  <tr><td>2330台灣積體電路製造股份有限公司</td></tr>
</table>
<table>
  <tr><th>職稱</th><th>姓名</th><th>選任時持股</th><th>目前持股</th><th>設質股數</th><th>設質比例</th></tr>
  <tr><td>董事長本人</td><td>魏哲家</td><td>6,394,954</td><td>6,394,954</td><td>1,600,000</td><td>25.02%</td></tr>
  <tr><td>董事長配偶</td><td>魏哲家</td><td>-</td><td>120,000</td><td>0</td><td>0.00%</td></tr>
  <tr><td>獨立董事本人</td><td>林全</td><td>0</td><td>0</td><td>0</td><td>-</td></tr>
</table>
<table>
  <tr><td>非獨立董事持股合計</td><td>45,000,000</td></tr>
  <tr><td>非獨立董事持股設質合計</td><td>1,600,000</td></tr>
  <tr><td>非獨立董事持股設質比例</td><td>3.56%</td></tr>
  <tr><td>獨立董事持股合計</td><td>0</td></tr>
  <tr><td>獨立董事持股設質合計</td><td>0</td></tr>
  <tr><td>獨立董事持股設質比例</td><td>0.00%</td></tr>
  <tr><td>全體董監持股合計</td><td>45,000,000</td></tr>
  <tr><td>全體董監持股設質合計</td><td>1,600,000</td></tr>
  <tr><td>全體董監持股設質比例</td><td>3.56%</td></tr>
</table>
</body></html>`

func parseFixture(t *testing.T, html string) []mops.Table {
	t.Helper()
	tables, err := mops.ParseTables(html)
	require.NoError(t, err)
	return tables
}

func testQuery() Query {
	return Query{StockID: "2330", Year: 113, Month: 12, Market: "sii"}
}

func TestCompanyName(t *testing.T) {
	tables := parseFixture(t, pledgePage)
	assert.Equal(t, "台灣積體電路製造股份有限公司", CompanyName(tables, "2330"))
	assert.Empty(t, CompanyName(tables, "2303"))
}

func TestParseDetailsPledgePage(t *testing.T) {
	tables := parseFixture(t, pledgePage)
	details, skipped, err := ParseDetails(tables, testQuery(), "台灣積體電路製造股份有限公司")
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, details, 3)

	chairman := details[0]
	assert.Equal(t, "董事長", chairman.Title)
	assert.Equal(t, "本人", chairman.Relationship)
	assert.Equal(t, "魏哲家", chairman.Name)
	require.NotNil(t, chairman.PledgedShares)
	assert.Equal(t, int64(1600000), *chairman.PledgedShares)
	require.NotNil(t, chairman.PledgeRatio)
	assert.InDelta(t, 25.02, *chairman.PledgeRatio, 0.005)
	require.NotNil(t, chairman.CurrentShares)
	assert.Equal(t, int64(6394954), *chairman.CurrentShares)

	spouse := details[1]
	assert.Equal(t, "董事長", spouse.Title)
	assert.Equal(t, "配偶", spouse.Relationship)
	// Dash cells stay nil.
	assert.Nil(t, spouse.SharesAtElection)

	independent := details[2]
	assert.Equal(t, "獨立董事", independent.Title)
	assert.Nil(t, independent.PledgeRatio)
}

func TestParseSummaryPledgePage(t *testing.T) {
	tables := parseFixture(t, pledgePage)
	s := ParseSummary(tables, testQuery(), "台灣積體電路製造股份有限公司")
	require.NotNil(t, s)

	require.NotNil(t, s.NonIndependentShares)
	assert.Equal(t, int64(45000000), *s.NonIndependentShares)
	require.NotNil(t, s.NonIndependentPledged)
	assert.Equal(t, int64(1600000), *s.NonIndependentPledged)
	require.NotNil(t, s.NonIndependentRatio)
	assert.InDelta(t, 3.56, *s.NonIndependentRatio, 0.001)
	require.NotNil(t, s.IndependentShares)
	assert.Zero(t, *s.IndependentShares)
	require.NotNil(t, s.TotalShares)
	assert.Equal(t, int64(45000000), *s.TotalShares)
	require.NotNil(t, s.TotalPledgeRatio)
	assert.InDelta(t, 3.56, *s.TotalPledgeRatio, 0.001)
}

func TestParseSummaryAbsent(t *testing.T) {
	const page = `<table><tr><td>職稱</td><td>姓名</td><td>a</td><td>b</td><td>c</td></tr></table>`
	assert.Nil(t, ParseSummary(parseFixture(t, page), testQuery(), ""))
}

func TestParseDetailsSkipsNamelessRows(t *testing.T) {
	const page = `
	<table>
	  <tr><td>職稱</td><td>姓名</td><td>選任時持股</td><td>目前持股</td><td>設質股數</td><td>設質比例</td></tr>
	  <tr><td>董事長本人</td><td>魏哲家</td><td>1</td><td>1</td><td>0</td><td>0.00%</td></tr>
	  <tr><td>董事本人</td><td></td><td>1</td><td>1</td><td>0</td><td>0.00%</td></tr>
	  <tr><td>監察人本人</td><td>張三</td><td>1</td><td>1</td><td>0</td><td>0.00%</td></tr>
	  <tr><td>總經理本人</td><td>李四</td><td>1</td><td>1</td><td>0</td><td>0.00%</td></tr>
	</table>`

	details, skipped, err := ParseDetails(parseFixture(t, page), testQuery(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Len(t, details, 3)
}

func TestParseDetailsSkipBudgetExceeded(t *testing.T) {
	const page = `
	<table>
	  <tr><td>職稱</td><td>姓名</td><td>選任時持股</td><td>目前持股</td><td>設質股數</td><td>設質比例</td></tr>
	  <tr><td>董事長本人</td><td>魏哲家</td><td>1</td><td>1</td><td>0</td><td>0.00%</td></tr>
	  <tr><td>董事本人</td><td></td><td>1</td><td>1</td><td>0</td><td>0.00%</td></tr>
	  <tr><td>監察人本人</td><td></td><td>1</td><td>1</td><td>0</td><td>0.00%</td></tr>
	</table>`

	_, skipped, err := ParseDetails(parseFixture(t, page), testQuery(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, mops.ErrRowParse)
	assert.Equal(t, 2, skipped)
}

func TestParseDetailsIgnoresNarrowTables(t *testing.T) {
	const page = `
	<table><tr><td>2330台灣積體電路製造股份有限公司</td></tr></table>
	<table><tr><td>全體董監持股合計</td><td>45,000,000</td></tr></table>`

	details, skipped, err := ParseDetails(parseFixture(t, page), testQuery(), "")
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Empty(t, details)
}
