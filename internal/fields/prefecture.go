package fields

import "strings"

var prefectures = []string{
	"北海道",
	"青森県", "岩手県", "宮城県", "秋田県", "山形県", "福島県",
	"茨城県", "栃木県", "群馬県", "埼玉県", "千葉県", "東京都", "神奈川県",
	"新潟県", "富山県", "石川県", "福井県", "山梨県", "長野県",
	"岐阜県", "静岡県", "愛知県", "三重県",
	"滋賀県", "京都府", "大阪府", "兵庫県", "奈良県", "和歌山県",
	"鳥取県", "島根県", "岡山県", "広島県", "山口県",
	"徳島県", "香川県", "愛媛県", "高知県",
	"福岡県", "佐賀県", "長崎県", "熊本県", "大分県", "宮崎県", "鹿児島県",
	"沖縄県",
}

// municipalityPrefixes lists municipalities whose names begin with a prefecture's
// short name. They keep their name and get the enclosing prefecture (and city, for
// wards) put in front.
var municipalityPrefixes = []struct{ name, parent string }{
	{"大阪狭山市", "大阪府"},
	{"福島区", "大阪府大阪市"},
	{"神奈川区", "神奈川県横浜市"},
	{"兵庫区", "兵庫県神戸市"},
	{"宮城郡", "宮城県"},
	{"岩手郡", "岩手県"},
	{"愛知郡", "愛知県"},
	{"鹿児島郡", "鹿児島県"},
	{"石川郡", "福島県"},
	{"京都郡", "福岡県"},
}

// expandPrefecture turns "東京千代田区" into "東京都千代田区". When the short name is
// followed by 市 it names the prefectural capital, so "大阪市北区" becomes "大阪府大阪市北区".
func expandPrefecture(addr string) string {
	for _, full := range prefectures {
		if strings.HasPrefix(addr, full) {
			return addr
		}
	}
	for _, m := range municipalityPrefixes {
		if strings.HasPrefix(addr, m.name) {
			return m.parent + addr
		}
	}
	for _, full := range prefectures {
		short := shortName(full)
		if short == full || !strings.HasPrefix(addr, short) {
			continue
		}
		rest := strings.TrimPrefix(addr, short)
		if strings.HasPrefix(rest, "市") {
			return full + addr
		}
		return full + rest
	}
	return addr
}

func shortName(full string) string {
	for _, suffix := range []string{"都", "府", "県"} {
		if strings.HasSuffix(full, suffix) {
			return strings.TrimSuffix(full, suffix)
		}
	}
	return full
}
