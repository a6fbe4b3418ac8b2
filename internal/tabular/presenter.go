package tabular

import (
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/model"
)

// maxObjectCellLen はオブジェクト型セルの表示上限文字数。
const maxObjectCellLen = 50

// CellKind はセルの表示種別。
type CellKind string

const (
	CellEmpty CellKind = "empty"
	CellText  CellKind = "text"
	CellImage CellKind = "image"
)

// Cell は表示用に整形済みのセル値。
type Cell struct {
	Kind CellKind `json:"kind"`
	Text string   `json:"text,omitempty"`
	URL  string   `json:"url,omitempty"`
	Alt  string   `json:"alt,omitempty"`
}

// HTML はセルのHTML表現を返す。画像セルはimg要素、それ以外はエスケープ済みテキスト。
func (c Cell) HTML() string {
	switch c.Kind {
	case CellImage:
		return fmt.Sprintf(`<img src=%q alt=%q>`, c.URL, c.Alt)
	case CellText:
		return html.EscapeString(c.Text)
	default:
		return ""
	}
}

// TableConfig はテーブルごとの表示設定。
type TableConfig struct {
	ExcludedColumns []string
	Renames         map[string]string
	SortKey         string
}

// tableConfigs は既知テーブルの表示設定。未登録のテーブルはそのまま表示する。
var tableConfigs = map[string]TableConfig{
	"Videos": {
		ExcludedColumns: []string{"Internal Notes", "Sync Status"},
		Renames:         map[string]string{"Title (Final)": "Title"},
		SortKey:         "Title (Final)",
	},
	"Courses": {
		ExcludedColumns: []string{"Internal Notes"},
		SortKey:         "Name",
	},
	"Resources": {
		Renames: map[string]string{"Name (EN)": "Name"},
		SortKey: "Name (EN)",
	},
}

// Sanitizer はセル内テキストの無害化に必要なインターフェース。
type Sanitizer interface {
	SanitizeText(s string) string
}

// Presenter はレコードを表示用のカラムとセルへ変換する。
type Presenter struct {
	sanitizer Sanitizer
	collator  *collate.Collator
}

// NewPresenter はPresenterを生成する。ソートはtagのロケールで比較する。
func NewPresenter(sanitizer Sanitizer, tag language.Tag) *Presenter {
	return &Presenter{
		sanitizer: sanitizer,
		collator:  collate.New(tag),
	}
}

// DeriveColumns は先頭レコードのフィールド挿入順からカラム名を導出する。
// 除外設定されたカラムは取り除く。レコードが空の場合は空スライスを返す。
func (p *Presenter) DeriveColumns(records []model.TabularRecord, table string) []string {
	if len(records) == 0 {
		return []string{}
	}

	cfg := tableConfigs[table]
	excluded := make(map[string]struct{}, len(cfg.ExcludedColumns))
	for _, name := range cfg.ExcludedColumns {
		excluded[name] = struct{}{}
	}

	names := records[0].Fields.Names()
	columns := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := excluded[name]; ok {
			continue
		}
		columns = append(columns, name)
	}
	return columns
}

// RenameColumn はカラムの表示名を返す。設定がなければ元の名前をそのまま返す。
func (p *Presenter) RenameColumn(table, name string) string {
	if renamed, ok := tableConfigs[table].Renames[name]; ok {
		return renamed
	}
	return name
}

// SortRecords はテーブルのソートキーに従い、ロケールを考慮した文字列比較で
// レコードを安定ソートする。ソートキー未設定のテーブルは順序を変えない。
func (p *Presenter) SortRecords(records []model.TabularRecord, table string) {
	cfg := tableConfigs[table]
	if cfg.SortKey == "" {
		return
	}

	key := func(r model.TabularRecord) string {
		v, ok := r.Fields.Get(cfg.SortKey)
		if !ok {
			return ""
		}
		return scalarString(v)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return p.collator.CompareString(key(records[i]), key(records[j])) < 0
	})
}

// RenderCell はフィールド値を表示用セルへ変換する。判定は以下の優先順で行う。
//  1. nil（欠損） → 空セル
//  2. 先頭要素がurlを持つオブジェクト配列 → 画像セル（添付ファイル）
//  3. 先頭要素がidを持つオブジェクト配列 → リンク済みレコードの件数表示
//  4. その他の配列 → カンマ区切りで連結
//  5. オブジェクト → JSON表現を上限まで切り詰めて表示
//  6. スカラー → 文字列化（テキストは無害化する）
func (p *Presenter) RenderCell(value any) Cell {
	if value == nil {
		return Cell{Kind: CellEmpty}
	}

	switch v := value.(type) {
	case []any:
		return p.renderArray(v)
	case map[string]any:
		return Cell{Kind: CellText, Text: renderObject(v)}
	default:
		return Cell{Kind: CellText, Text: p.renderScalar(v)}
	}
}

func (p *Presenter) renderArray(items []any) Cell {
	if len(items) == 0 {
		return Cell{Kind: CellEmpty}
	}

	if first, ok := items[0].(map[string]any); ok {
		if rawURL, ok := first["url"].(string); ok {
			alt, _ := first["filename"].(string)
			return Cell{Kind: CellImage, URL: rawURL, Alt: alt}
		}
		if _, ok := first["id"]; ok {
			return Cell{Kind: CellText, Text: fmt.Sprintf("%d linked records", len(items))}
		}
	}

	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, p.renderScalar(item))
	}
	return Cell{Kind: CellText, Text: strings.Join(parts, ", ")}
}

func renderObject(v map[string]any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "Complex data"
	}
	runes := []rune(string(b))
	if len(runes) > maxObjectCellLen {
		return string(runes[:maxObjectCellLen]) + "..."
	}
	return string(runes)
}

func (p *Presenter) renderScalar(v any) string {
	s := scalarString(v)
	if _, ok := v.(string); ok {
		return p.sanitizer.SanitizeText(s)
	}
	return s
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}
