package dividend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formosa-data/formosa/internal/mops"
)

const dividendPage = `
<html><body>
<table>
  <tr><td>2330台灣積體電路製造股份有限公司</td></tr>
</table>
<table>
  <tr><th>決議層級</th><th>股利所屬期間</th><th>董事會決議日期</th><th>除息交易日</th><th>除權交易日</th>
      <th>股東配發內容</th><th>現金股利</th><th>股票股利</th></tr>
  <tr><td>章程授權(董事會決議)</td><td>112年第1季 112/01/01~112/03/31</td><td>112/05/09</td><td>112/09/14</td><td>-</td>
      <td>-</td><td>2.75</td><td>0</td></tr>
  <tr><td>章程授權(董事會決議)</td><td>112年第2季 112/04/01~112/06/30</td><td>112/08/08</td><td>112/12/14</td><td>-</td>
      <td>-</td><td>3.00</td><td>0</td></tr>
  <tr><td>章程授權(董事會決議)</td><td>112年第3季 112/07/01~112/09/30</td><td>112/11/14</td><td>113/03/14</td><td>-</td>
      <td>-</td><td>3.25</td><td>0</td></tr>
  <tr><td>章程授權(董事會決議)</td><td>112年第4季 112/10/01~112/12/31</td><td>113/02/06</td><td>113/06/13</td><td>-</td>
      <td>-</td><td>4.00</td><td>0</td></tr>
</table>
</body></html>`

const annualDividendPage = `
<table>
  <tr><th>決議層級</th><th>股利所屬期間</th><th>董事會決議日期</th><th>a</th><th>b</th>
      <th>c</th><th>現金股利</th><th>股票股利</th></tr>
  <tr><td>股東會確認</td><td>110年年度</td><td>111/02/15</td><td>-</td><td>-</td>
      <td>-</td><td>5.5</td><td>0.5</td></tr>
</table>`

func parseFixture(t *testing.T, html string) []mops.Table {
	t.Helper()
	tables, err := mops.ParseTables(html)
	require.NoError(t, err)
	return tables
}

func TestCompanyName(t *testing.T) {
	tables := parseFixture(t, dividendPage)
	assert.Equal(t, "台灣積體電路製造股份有限公司", CompanyName(tables, "2330"))
}

func TestParseRecordsQuarterlyPage(t *testing.T) {
	tables := parseFixture(t, dividendPage)
	records, skipped, err := ParseRecords(tables, "2330", "台灣積體電路製造股份有限公司")
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, records, 4)

	var cash float64
	for i, rec := range records {
		assert.Equal(t, 112, rec.Year)
		require.NotNil(t, rec.Quarter)
		assert.Equal(t, i+1, *rec.Quarter)
		require.NotNil(t, rec.CashDividend)
		cash += *rec.CashDividend
	}
	assert.InDelta(t, 13.0, cash, 0.0005)

	q1 := records[0]
	require.NotNil(t, q1.BoardResolutionDate)
	assert.Equal(t, "112/05/09", *q1.BoardResolutionDate)
	assert.InDelta(t, 2.75, q1.TotalDividend, 0.0005)
}

func TestParseRecordsAnnualPage(t *testing.T) {
	records, skipped, err := ParseRecords(parseFixture(t, annualDividendPage), "2412", "中華電信")
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, 110, rec.Year)
	assert.Nil(t, rec.Quarter)
	require.NotNil(t, rec.CashDividend)
	assert.InDelta(t, 5.5, *rec.CashDividend, 0.0005)
	require.NotNil(t, rec.StockDividend)
	assert.InDelta(t, 0.5, *rec.StockDividend, 0.0005)
	assert.InDelta(t, 6.0, rec.TotalDividend, 0.0005)
}

func TestParseRecordsSkipsYearlessRows(t *testing.T) {
	const page = `
	<table>
	  <tr><th>決議層級</th><th>股利所屬期間</th><th>c</th><th>d</th><th>e</th><th>f</th><th>現金股利</th><th>股票股利</th></tr>
	  <tr><td>章程授權(董事會決議)</td><td>112年第1季 112/01/01~112/03/31</td><td>-</td><td>-</td><td>-</td><td>-</td><td>2.75</td><td>0</td></tr>
	  <tr><td>章程授權(董事會決議)</td><td>112年第2季 112/04/01~112/06/30</td><td>-</td><td>-</td><td>-</td><td>-</td><td>3.00</td><td>0</td></tr>
	  <tr><td>章程授權(董事會決議)</td><td>112年第3季 112/07/01~112/09/30</td><td>-</td><td>-</td><td>-</td><td>-</td><td>3.25</td><td>0</td></tr>
	  <tr><td>合計</td><td>無所屬區間</td><td>-</td><td>-</td><td>-</td><td>-</td><td>9.00</td><td>0</td></tr>
	</table>`

	records, skipped, err := ParseRecords(parseFixture(t, page), "2330", "")
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Len(t, records, 3)
}

func TestParseRecordsSkipBudgetExceeded(t *testing.T) {
	const page = `
	<table>
	  <tr><th>決議層級</th><th>股利所屬期間</th><th>c</th><th>d</th><th>e</th><th>f</th><th>現金股利</th><th>股票股利</th></tr>
	  <tr><td>章程授權(董事會決議)</td><td>112年第1季 112/01/01~112/03/31</td><td>-</td><td>-</td><td>-</td><td>-</td><td>2.75</td><td>0</td></tr>
	  <tr><td>合計</td><td>無所屬區間</td><td>-</td><td>-</td><td>-</td><td>-</td><td>9.00</td><td>0</td></tr>
	</table>`

	_, skipped, err := ParseRecords(parseFixture(t, page), "2330", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, mops.ErrRowParse)
	assert.Equal(t, 1, skipped)
}

func TestParseRecordsIgnoresUnrelatedTables(t *testing.T) {
	const page = `
	<table>
	  <tr><td>代號</td><td>名稱</td><td>金額</td></tr>
	  <tr><td>2330</td><td>台積電</td><td>113年數據</td></tr>
	</table>`

	records, skipped, err := ParseRecords(parseFixture(t, page), "2330", "")
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Empty(t, records)
}

func TestExtractQuarterVariants(t *testing.T) {
	q := extractQuarter("112/07/01~112/09/30")
	require.NotNil(t, q)
	assert.Equal(t, 3, *q)
	assert.Nil(t, extractQuarter("112年年度"))
}
