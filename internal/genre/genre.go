// Package genre maps free-text restaurant category labels onto the ten
// canonical genre codes used by the map outputs.
package genre

import "fmt"

// Code is a canonical genre code. Valid codes are 1 through 10.
type Code int

// Canonical genre codes.
const (
	Izakaya          Code = 1  // 居酒屋・バー・ダイニングバー・バル
	Japanese         Code = 2  // 和食
	Western          Code = 3  // 洋食・フレンチ・イタリアン
	Chinese          Code = 4  // 中華
	Noodle           Code = 5  // うどん・そば・ラーメン・餃子・丼
	International    Code = 6  // カレー・アジア・エスニック・各国料理
	Yakiniku         Code = 7  // ステーキ・鉄板焼・焼肉・ホルモン
	FamilyRestaurant Code = 8  // ファーストフード・ファミレス・食堂
	Cafe             Code = 9  // カフェ・スイーツ
	Other            Code = 10 // その他
)

var codeNames = map[Code]string{
	Izakaya:          "izakaya",
	Japanese:         "japanese",
	Western:          "western",
	Chinese:          "chinese",
	Noodle:           "noodle",
	International:    "international",
	Yakiniku:         "yakiniku",
	FamilyRestaurant: "family_restaurant",
	Cafe:             "cafe",
	Other:            "other",
}

// Codes returns every valid code in ascending order.
func Codes() []Code {
	return []Code{Izakaya, Japanese, Western, Chinese, Noodle, International, Yakiniku, FamilyRestaurant, Cafe, Other}
}

// Valid reports whether c is one of the ten canonical codes.
func (c Code) Valid() bool {
	_, ok := codeNames[c]
	return ok
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("genre(%d)", int(c))
}
