package revenue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formosa-data/formosa/internal/mops"
)

const revenuePage = `
<html><body>
<table>
  <tr><th>公司代號</th><th>公司名稱</th><th>當月營收</th><th>上月營收</th><th>去年當月營收</th>
      <th>上月比較增減(%)</th><th>去年同月增減(%)</th><th>當月累計營收</th><th>去年累計營收</th>
      <th>前期比較增減(%)</th><th>備註</th></tr>
  <tr><td>2330</td><td>台積電</td><td>278,163,107</td><td>276,058,074</td><td>176,299,866</td>
      <td>0.76</td><td>57.77</td><td>2,894,307,699</td><td>2,161,735,841</td>
      <td>33.89</td><td>-</td></tr>
  <tr><td>2303</td><td>聯電</td><td>18,891,413</td><td>19,232,180</td><td>19,170,869</td>
      <td>-1.77</td><td>-1.45</td><td>232,302,476</td><td>222,533,103</td>
      <td>4.39</td><td>-</td></tr>
  <tr><td>合計</td><td></td><td>297,054,520</td><td></td><td></td><td></td><td></td><td></td><td></td><td></td><td></td></tr>
</table>
<table>
  <tr><td>5483</td><td>中美晶</td><td>5,786,520</td><td>5,991,002</td><td>6,317,099</td>
      <td>-3.41</td><td>-8.39</td><td>69,941,682</td><td>72,197,209</td>
      <td>-3.12</td><td>產能調整</td></tr>
</table>
</body></html>`

func parseFixture(t *testing.T, html string) []mops.Table {
	t.Helper()
	tables, err := mops.ParseTables(html)
	require.NoError(t, err)
	return tables
}

func TestParseTablesRevenuePage(t *testing.T) {
	q := Query{Market: "sii", Year: 113, Month: 12}
	rows, skipped, err := ParseTables(parseFixture(t, revenuePage), q)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, rows, 3)

	tsmc := rows[0]
	assert.Equal(t, "2330", tsmc.StockID)
	assert.Equal(t, "台積電", tsmc.CompanyName)
	assert.Equal(t, 113, tsmc.Year)
	assert.Equal(t, 12, tsmc.Month)
	assert.Equal(t, "sii", tsmc.Market)
	require.NotNil(t, tsmc.Revenue)
	assert.Equal(t, int64(278163107), *tsmc.Revenue)
	require.NotNil(t, tsmc.MoMChange)
	assert.InDelta(t, 0.76, *tsmc.MoMChange, 0.001)
	require.NotNil(t, tsmc.AccumulatedRevenue)
	assert.Equal(t, int64(2894307699), *tsmc.AccumulatedRevenue)
	// Dash comments are dropped.
	assert.Empty(t, tsmc.Comment)

	umc := rows[1]
	require.NotNil(t, umc.YoYChange)
	assert.InDelta(t, -1.45, *umc.YoYChange, 0.001)

	// The second industry table contributes too.
	assert.Equal(t, "5483", rows[2].StockID)
	assert.Equal(t, "產能調整", rows[2].Comment)
}

func TestParseTablesSkipsUnparseableRows(t *testing.T) {
	const page = `
	<table>
	  <tr><td>2330</td><td>台積電</td><td>100</td><td>90</td><td>80</td></tr>
	  <tr><td>2303</td><td>聯電</td><td>不適用</td><td>90</td><td>80</td></tr>
	  <tr><td>2454</td><td>聯發科</td><td>200</td><td>90</td><td>80</td></tr>
	  <tr><td>2881</td><td>富邦金</td><td>300</td><td>90</td><td>80</td></tr>
	</table>`

	rows, skipped, err := ParseTables(parseFixture(t, page), Query{Market: "sii", Year: 113, Month: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Len(t, rows, 3)
}

func TestParseTablesFailsWhenSkipBudgetExceeded(t *testing.T) {
	const page = `
	<table>
	  <tr><td>2330</td><td>台積電</td><td>100</td><td>90</td><td>80</td></tr>
	  <tr><td>2303</td><td>聯電</td><td>-</td><td>90</td><td>80</td></tr>
	  <tr><td>2454</td><td>聯發科</td><td>N/A</td><td>90</td><td>80</td></tr>
	</table>`

	_, skipped, err := ParseTables(parseFixture(t, page), Query{Market: "sii", Year: 113, Month: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, mops.ErrRowParse)
	assert.Equal(t, 2, skipped)
}

func TestParseTablesIgnoresNonCompanyRows(t *testing.T) {
	const page = `
	<table>
	  <tr><td>公司代號</td><td>公司名稱</td><td>當月營收</td><td>a</td><td>b</td></tr>
	  <tr><td>水泥工業</td><td></td><td>999</td><td>a</td><td>b</td></tr>
	  <tr><td>1101</td><td>台泥</td><td>8,000</td><td>7,000</td><td>6,000</td></tr>
	</table>`

	rows, skipped, err := ParseTables(parseFixture(t, page), Query{Market: "sii", Year: 113, Month: 1})
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, rows, 1)
	assert.Equal(t, "1101", rows[0].StockID)
}
