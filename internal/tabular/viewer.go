package tabular

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/model"
)

// Fetcher はテーブル取得に必要なインターフェース。
type Fetcher interface {
	FetchTable(ctx context.Context, table string) ([]model.TabularRecord, error)
}

// ColumnView は表示用カラム。Fieldは元のフィールド名、Labelは表示名。
type ColumnView struct {
	Field string `json:"field"`
	Label string `json:"label"`
}

// RowView は表示用の1行。Cellsはカラムと同じ順序で並ぶ。
type RowView struct {
	ID    string `json:"id"`
	Cells []Cell `json:"cells"`
}

// TableView は1テーブル分の表示状態。
// レコードが0件の場合、エラーではなくWarningに警告を載せて返す。
type TableView struct {
	Table   string          `json:"table"`
	Columns []ColumnView    `json:"columns"`
	Rows    []RowView       `json:"rows"`
	Warning *model.APIError `json:"warning,omitempty"`
}

// Viewer はテーブルの取得と表示状態の保持を行う。
// リクエストごとに世代番号を振り、古いリクエストの応答が後から到着しても
// 新しい表示状態を上書きしないことを保証する。
type Viewer struct {
	fetcher   Fetcher
	presenter *Presenter

	gen        atomic.Uint64
	mu         sync.Mutex
	appliedGen uint64
	current    *TableView
}

// NewViewer はViewerを生成する。
func NewViewer(fetcher Fetcher, presenter *Presenter) *Viewer {
	return &Viewer{fetcher: fetcher, presenter: presenter}
}

// Load はテーブルを取得して表示状態を構築する。
// 返り値はこのリクエストの結果で、保持される表示状態はより新しいリクエストが
// 先に完了していた場合には更新されない。
func (v *Viewer) Load(ctx context.Context, table string) (*TableView, error) {
	gen := v.gen.Add(1)

	records, err := v.fetcher.FetchTable(ctx, table)
	if err != nil {
		return nil, err
	}

	view := v.buildView(table, records)

	v.mu.Lock()
	if gen > v.appliedGen {
		v.appliedGen = gen
		v.current = view
	}
	v.mu.Unlock()

	return view, nil
}

// Current は最後に適用された表示状態を返す。未取得の場合はnil。
func (v *Viewer) Current() *TableView {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

func (v *Viewer) buildView(table string, records []model.TabularRecord) *TableView {
	view := &TableView{
		Table:   table,
		Columns: []ColumnView{},
		Rows:    []RowView{},
	}

	if len(records) == 0 {
		view.Warning = model.NewNoRecordsWarning(table)
		return view
	}

	v.presenter.SortRecords(records, table)

	fields := v.presenter.DeriveColumns(records, table)
	for _, field := range fields {
		view.Columns = append(view.Columns, ColumnView{
			Field: field,
			Label: v.presenter.RenameColumn(table, field),
		})
	}

	for _, record := range records {
		row := RowView{ID: record.ID, Cells: make([]Cell, 0, len(fields))}
		for _, field := range fields {
			value, _ := record.Fields.Get(field)
			row.Cells = append(row.Cells, v.presenter.RenderCell(value))
		}
		view.Rows = append(view.Rows, row)
	}

	return view
}
