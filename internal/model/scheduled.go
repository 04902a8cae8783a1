package model

// Level は学習進捗のレベルを表す。
type Level string

// LevelL0 は未学習カードの初期レベル。
const LevelL0 Level = "L0"

// ScheduledCard はユーザーごとのカード学習進捗レコードを表す。
// 本システムでは作成と削除のみを行い、進捗の更新は学習アプリ側が行う。
type ScheduledCard struct {
	Level    Level `json:"level"`
	RepeatAt int64 `json:"repeatAt"`
}

// NewScheduledCard は初期状態（L0、repeatAt=0）の学習レコードを生成する。
func NewScheduledCard() ScheduledCard {
	return ScheduledCard{
		Level:    LevelL0,
		RepeatAt: 0,
	}
}
