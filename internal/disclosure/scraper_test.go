package disclosure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formosa-data/formosa/internal/mops"
)

const disclosurePage = `
<html><body>
<table>
  <tr><td>本資料由　(上市公司) 鴻海　公司提供</td></tr>
</table>
<table>
  <tr><th>項目</th><th>本月餘額</th><th>上月餘額</th><th>最高限額</th></tr>
  <tr><td>本公司 有資金貸放餘額者</td><td>1,250,000</td><td>1,300,000</td><td>50,000,000</td></tr>
  <tr><td>子公司 有資金貸放餘額者</td><td>880,000</td><td>900,000</td><td>30,000,000</td></tr>
</table>
<table>
  <tr><th>項目</th><th>本月增減金額</th><th>累計餘額</th><th>最高額度</th></tr>
  <tr><td>本公司 有背書保證資訊者</td><td>-120,000</td><td>4,500,000</td><td>80,000,000</td></tr>
  <tr><td>子公司 無背書保證資訊者</td><td>-</td><td>-</td><td>-</td></tr>
</table>
<table>
  <tr><th>本公司與子公司間背書保證</th><th>累計餘額</th></tr>
  <tr><td>本公司對子公司背書保證</td><td>2,000,000</td></tr>
  <tr><td>子公司對本公司背書保證</td><td>0</td></tr>
</table>
<table>
  <tr><th>對大陸地區背書保證</th><th>本月增減金額</th><th>累計餘額</th></tr>
  <tr><td>本公司 有對大陸地區背書保證者</td><td>50,000</td><td>600,000</td></tr>
</table>
</body></html>`

func parseFixture(t *testing.T, html string) []mops.Table {
	t.Helper()
	tables, err := mops.ParseTables(html)
	require.NoError(t, err)
	return tables
}

func TestCompanyName(t *testing.T) {
	assert.Equal(t, "鴻海", CompanyName(parseFixture(t, disclosurePage)))
	assert.Empty(t, CompanyName(nil))
}

func TestParseFundsLending(t *testing.T) {
	rows := ParseFundsLending(parseFixture(t, disclosurePage))
	require.Len(t, rows, 2)

	parent := rows[0]
	assert.Equal(t, EntityParent, parent.Entity)
	assert.True(t, parent.HasBalance)
	require.NotNil(t, parent.CurrentMonth)
	assert.Equal(t, int64(1250000), *parent.CurrentMonth)
	require.NotNil(t, parent.PreviousMonth)
	assert.Equal(t, int64(1300000), *parent.PreviousMonth)
	require.NotNil(t, parent.MaxLimit)
	assert.Equal(t, int64(50000000), *parent.MaxLimit)

	assert.Equal(t, EntitySubsidiary, rows[1].Entity)
}

func TestParseEndorsement(t *testing.T) {
	rows := ParseEndorsement(parseFixture(t, disclosurePage))
	require.Len(t, rows, 2)

	parent := rows[0]
	assert.Equal(t, EntityParent, parent.Entity)
	assert.True(t, parent.HasBalance)
	require.NotNil(t, parent.MonthlyChange)
	assert.Equal(t, int64(-120000), *parent.MonthlyChange)
	require.NotNil(t, parent.AccumulatedBalance)
	assert.Equal(t, int64(4500000), *parent.AccumulatedBalance)

	sub := rows[1]
	assert.Equal(t, EntitySubsidiary, sub.Entity)
	assert.False(t, sub.HasBalance)
	// Dash cells stay nil.
	assert.Nil(t, sub.MonthlyChange)
}

func TestParseCrossCompany(t *testing.T) {
	cc := ParseCrossCompany(parseFixture(t, disclosurePage))
	require.NotNil(t, cc)
	require.NotNil(t, cc.ParentToSubsidiary)
	assert.Equal(t, int64(2000000), *cc.ParentToSubsidiary)
	require.NotNil(t, cc.SubsidiaryToParent)
	assert.Zero(t, *cc.SubsidiaryToParent)
}

func TestParseCrossCompanyAbsent(t *testing.T) {
	const page = `<table><tr><td>本公司 有資金貸放餘額者</td><td>1</td></tr></table>`
	assert.Nil(t, ParseCrossCompany(parseFixture(t, page)))
}

func TestParseChinaGuarantee(t *testing.T) {
	rows := ParseChinaGuarantee(parseFixture(t, disclosurePage))
	require.Len(t, rows, 1)
	assert.Equal(t, EntityParent, rows[0].Entity)
	assert.True(t, rows[0].HasBalance)
	require.NotNil(t, rows[0].AccumulatedBalance)
	assert.Equal(t, int64(600000), *rows[0].AccumulatedBalance)
}

func TestEndorsementExcludesChinaAndCrossTables(t *testing.T) {
	// The China and cross-company tables repeat the guarantee label and
	// must not leak into the general listing.
	rows := ParseEndorsement(parseFixture(t, disclosurePage))
	for _, row := range rows {
		assert.NotNil(t, row)
	}
	assert.Len(t, rows, 2)
}
