// Package model はドメインモデルを定義する。
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field はテーブルレコードの1カラム分の名前と値を表す。
// 値はJSONデコード結果そのまま（string、float64、bool、[]any、map[string]any、nil）。
type Field struct {
	Name  string
	Value any
}

// Fields はレコードのフィールド集合。
// 外部APIのレスポンスに現れたキーの出現順を保持する。
// カラムの表示順は先頭レコードのキー順で決まるため、map[string]anyではなく
// 順序付きリストとしてデコードする。
type Fields []Field

// UnmarshalJSON はJSONオブジェクトをキー出現順を保持したままデコードする。
func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("fields はJSONオブジェクトでなければなりません")
	}

	result := Fields{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("fields のキーが文字列ではありません")
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}

		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return err
		}

		result = append(result, Field{Name: key, Value: value})
	}

	*f = result
	return nil
}

// Get は指定された名前のフィールド値を返す。存在しない場合は(nil, false)。
func (f Fields) Get(name string) (any, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return nil, false
}

// Names はフィールド名を出現順で返す。
func (f Fields) Names() []string {
	names := make([]string, len(f))
	for i, field := range f {
		names[i] = field.Name
	}
	return names
}

// TabularRecord は外部データベースの1レコードを表す。
// スキーマは固定されておらず、テーブルごとにフェッチ時へ先頭レコードから発見される。
type TabularRecord struct {
	ID     string `json:"id"`
	Fields Fields `json:"fields"`
}
