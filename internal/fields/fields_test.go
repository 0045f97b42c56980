package fields

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/doc-intake/constants"
	"github.com/joseph-ayodele/doc-intake/internal/rules"
)

func day(y int, m time.Month, d int) Value { return Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)) }

func TestConvertEra(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"令和5年", "2023年", false},
		{"平成31年", "2019年", false},
		{"令和元年", "2019年", false},
		{"昭和64年", "1989年", false},
		{"大正15年", "1926年", false},
		{"平成 15 年4月1日", "2003年4月1日", false},
		{" 2021年 ", "2021年", false},
		{"明治", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ConvertEra(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEraToGregorian(t *testing.T) {
	y, err := EraToGregorian("令和", 6)
	require.NoError(t, err)
	assert.Equal(t, 2024, y)

	_, err = EraToGregorian("令和", 0)
	require.Error(t, err)
	_, err = EraToGregorian("明治", 1)
	require.Error(t, err)
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1,200", 1200, false},
		{"１２，０００円", 12000, false},
		{"¥ 55,000", 55000, false},
		{"1億2,000万", 120_000_000, false},
		{"3,000万", 30_000_000, false},
		{"5億", 500_000_000, false},
		{"△5,000", -5000, false},
		{"-42", -42, false},
		{"0", 0, false},
		{"", 0, true},
		{"億", 0, true},
		{"12a", 0, true},
		{"9,223,372,036,854,775,807", 9_223_372_036_854_775_807, false},
		{"9,223,372,036,854,775,808", 0, true},
		{"99,999,999,999,999,999,999", 0, true},
		{"1000000000000億", 0, true},
		{"922,337,203,685億5,000万", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInt(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"令和5年3月31日", time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC), false},
		{"平成元年1月8日", time.Date(1989, 1, 8, 0, 0, 0, 0, time.UTC), false},
		{"2024年 5月 1日", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), false},
		{"2024/05/31", time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC), false},
		{"２０２４－０６－０１", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), false},
		{"2023年2月30日", time.Time{}, true},
		{"令和5年", time.Time{}, true},
		{"soon", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"東京都千代田区丸の内 一丁目1番1号", "東京都千代田区丸の内一丁目1番1号"},
		{"東京 千代田区丸の内１－１", "東京都千代田区丸の内1-1"},
		{"大阪市北区梅田3-1", "大阪府大阪市北区梅田3-1"},
		{"神奈川横浜市西区", "神奈川県横浜市西区"},
		{"京都市中京区", "京都府京都市中京区"},
		{"北海道札幌市", "北海道札幌市"},
		{"〒100-0005 東京都千代田区丸の内", "東京都千代田区丸の内"},
		{"港区赤坂", "港区赤坂"},
		{"大阪狭山市金剛1丁目", "大阪府大阪狭山市金剛1丁目"},
		{"大阪府大阪狭山市金剛1丁目", "大阪府大阪狭山市金剛1丁目"},
		{"福島区福島5丁目", "大阪府大阪市福島区福島5丁目"},
		{"神奈川区鶴屋町2丁目", "神奈川県横浜市神奈川区鶴屋町2丁目"},
		{"宮城郡利府町", "宮城県宮城郡利府町"},
		{"京都郡苅田町", "福岡県京都郡苅田町"},
		{"福島市杉妻町", "福島県福島市杉妻町"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAddress(tt.in))
		})
	}
}

func TestValueJSON(t *testing.T) {
	in := Fields{
		"companyName": String("株式会社サンプル"),
		"capital":     Int(120_000_000),
		"issueDate":   day(2024, time.April, 1),
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"companyName":"株式会社サンプル","capital":120000000,"issueDate":{"date":"2024-04-01"}}`, string(b))

	var out Fields
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
	assert.Error(t, json.Unmarshal([]byte(`{"x":[1]}`), &out))
}

func TestValueJSONKeepsKind(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		kind Kind
	}{
		{"date-like string", String("2023-04-01"), KindString},
		{"numeric string", String("12345"), KindString},
		{"empty string", String(""), KindString},
		{"date", day(2023, time.April, 1), KindDate},
		{"int", Int(-42), KindInt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.in)
			require.NoError(t, err)
			var out Value
			require.NoError(t, json.Unmarshal(b, &out))
			assert.Equal(t, tt.kind, out.Kind())
			assert.Equal(t, tt.in, out)
		})
	}
}

func TestValueJSONRejectsBadDate(t *testing.T) {
	for _, raw := range []string{`{"date":"2023-13-01"}`, `{"date":1}`, `{"date":"2023-04-01","x":1}`, `{}`} {
		var v Value
		assert.Error(t, json.Unmarshal([]byte(raw), &v), raw)
	}
}

func TestValueAccessors(t *testing.T) {
	i, ok := Int(5).Int64()
	assert.True(t, ok)
	assert.Equal(t, int64(5), i)
	_, ok = String("5").Int64()
	assert.False(t, ok)

	d, ok := day(2020, time.January, 2).Time()
	assert.True(t, ok)
	assert.Equal(t, "2020-01-02", d.Format("2006-01-02"))
	assert.Equal(t, "2020-01-02", day(2020, time.January, 2).String())

	assert.True(t, String("").IsEmpty())
	assert.False(t, Int(0).IsEmpty())
	assert.Equal(t, KindDate, day(2020, 1, 1).Kind())
}

const corporateText = `履歴事項全部証明書
会社法人等番号 0104-01-123456
商 号 株式会社サンプル商事
本 店 東京都千代田区丸の内一丁目1番1号
会社成立の年月日 平成15年4月1日
資本金の額 金1億2,000万円
役員に関する事項
取締役 山田太郎
令和3年6月25日就任
代表取締役 山田太郎
東京都港区赤坂一丁目2番3号
令和3年6月25日就任
取締役 佐藤次郎
令和4年6月28日辞任
取締役 鈴木花子
登記記録に関する事項
設立`

func TestCorporateRegistry(t *testing.T) {
	got := NewEngine(nil, nil).ExtractFields(corporateText, constants.DocumentTypeCorporateRegistry)
	assert.Equal(t, Fields{
		"corporateNumber":         String("0104-01-123456"),
		"companyName":             String("株式会社サンプル商事"),
		"headOfficeAddress":       String("東京都千代田区丸の内一丁目1番1号"),
		"capital":                 Int(120_000_000),
		"establishedDate":         day(2003, time.April, 1),
		"representative":          String("山田太郎"),
		"representativeAddress":   String("東京都港区赤坂一丁目2番3号"),
		"representativeAppointed": day(2021, time.June, 25),
		"officers":                String("取締役 山田太郎、代表取締役 山田太郎、取締役 鈴木花子"),
		"officerCount":            Int(3),
	}, got)
}

func TestOutOfRangeAmountIsDropped(t *testing.T) {
	got := NewEngine(nil, nil).ExtractFields("資本金の額 金99999999999999999999円", constants.DocumentTypeCorporateRegistry)
	assert.NotContains(t, got, "capital")
}

func TestTaxCertificate(t *testing.T) {
	text := `納税証明書
(その1 納付すべき税額等)
住 所 東京都千代田区丸の内1-1-1
氏名又は名称 株式会社サンプル商事
税 目 法人税
事業年度 令和5年
納付すべき税額 1,234,000円
未納税額 0円
麹町税務署長`
	got := NewEngine(nil, nil).ExtractFields(text, constants.DocumentTypeTaxCertificate)
	assert.Equal(t, Fields{
		"taxpayerName": String("株式会社サンプル商事"),
		"address":      String("東京都千代田区丸の内1-1-1"),
		"taxItem":      String("法人税"),
		"fiscalYear":   String("2023年"),
		"taxAmount":    Int(1_234_000),
		"unpaidAmount": Int(0),
	}, got)
}

func TestFinancialStatementUnits(t *testing.T) {
	text := `決算報告書
貸借対照表
令和5年3月31日現在
(単位:千円)
資産合計 1,500,000
純資産合計 600,000
損益計算書
売上高 2,400,000
営業利益 120,000
経常利益 110,000
当期純利益 △5,000`
	got := NewEngine(nil, nil).ExtractFields(text, constants.DocumentTypeFinancialStatement)
	assert.Equal(t, Fields{
		"fiscalPeriodEnd": day(2023, time.March, 31),
		"netSales":        Int(2_400_000_000),
		"operatingIncome": Int(120_000_000),
		"ordinaryIncome":  Int(110_000_000),
		"netIncome":       Int(-5_000_000),
		"totalAssets":     Int(1_500_000_000),
		"netAssets":       Int(600_000_000),
	}, got)
}

func TestQuotationAndInvoice(t *testing.T) {
	e := NewEngine(nil, nil)

	quote := "御見積書\n見積番号: Q-2024-001\n株式会社テスト 御中\n見積日 2024年4月1日\n御見積金額 ¥1,320,000\n有効期限 2024年4月30日"
	assert.Equal(t, Fields{
		"quotationNumber": String("Q-2024-001"),
		"recipient":       String("株式会社テスト"),
		"issueDate":       day(2024, time.April, 1),
		"totalAmount":     Int(1_320_000),
		"validUntil":      day(2024, time.April, 30),
	}, e.ExtractFields(quote, constants.DocumentTypeQuotation))

	invoice := "請求書\n請求番号 INV-0042\n登録番号 T1234567890123\n株式会社テスト 御中\n請求日 2024/05/01\nご請求金額 55,000円\n消費税(10%) 5,000円\nお支払期限 2024年5月31日"
	assert.Equal(t, Fields{
		"invoiceNumber":      String("INV-0042"),
		"registrationNumber": String("T1234567890123"),
		"recipient":          String("株式会社テスト"),
		"issueDate":          day(2024, time.May, 1),
		"totalAmount":        Int(55_000),
		"taxAmount":          Int(5_000),
		"dueDate":            day(2024, time.May, 31),
	}, e.ExtractFields(invoice, constants.DocumentTypeInvoice))
}

func TestGenericExtractor(t *testing.T) {
	text := "2024年1月15日\n株式会社ABC\n〒100-0005\nTEL 03-1234-5678\n合計 12,000円"
	got := NewEngine(nil, nil).ExtractFields(text, constants.DocumentTypeUnknown)
	assert.Equal(t, Fields{
		"documentDate": day(2024, time.January, 15),
		"companyName":  String("株式会社ABC"),
		"postalCode":   String("100-0005"),
		"phone":        String("03-1234-5678"),
		"amount":       Int(12_000),
	}, got)

	assert.Equal(t, got, NewEngine(nil, nil).ExtractFields(text, constants.DocumentType("BOGUS")))
}

func TestPartialFields(t *testing.T) {
	e := NewEngine(nil, nil)
	got := e.ExtractFields("請求書\nご請求金額 55,000円", constants.DocumentTypeInvoice)
	assert.Equal(t, Fields{"totalAmount": Int(55_000)}, got)

	assert.Empty(t, e.ExtractFields("", constants.DocumentTypeInvoice))
	assert.Empty(t, e.ExtractFields("nothing to see", constants.DocumentTypeCorporateRegistry))
}

func TestFirstSuccessfulRuleWins(t *testing.T) {
	set, err := rules.New(rules.DefaultQuorum, nil, map[constants.DocumentType][]rules.FieldRule{
		constants.DocumentTypeUnknown: {
			{FieldName: "when", Pattern: mustRe(`date: (\S+)`), PostProcess: rules.PostParseDate},
			{FieldName: "when", Pattern: mustRe(`alt: (\S+)`), PostProcess: rules.PostParseDate},
			{FieldName: "raw", Pattern: mustRe(`raw: (.*)`), PostProcess: rules.PostNone},
		},
	})
	require.NoError(t, err)
	got := NewEngine(set, nil).ExtractFields("date: garbage\nalt: 2024/01/02\nraw:  x ", constants.DocumentTypeUnknown)
	assert.Equal(t, Fields{"when": day(2024, time.January, 2), "raw": String(" x ")}, got)
	assert.Equal(t, []string{"when", "raw"}, NewEngine(set, nil).ExpectedFields(constants.DocumentTypeUnknown))
}

func mustRe(p string) *regexp.Regexp { return regexp.MustCompile(p) }
