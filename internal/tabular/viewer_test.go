package tabular

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"golang.org/x/text/language"

	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/model"
)

// mockFetcher は関数フィールドで挙動を差し替えるモック。
type mockFetcher struct {
	fetchTableFunc func(ctx context.Context, table string) ([]model.TabularRecord, error)
}

func (m *mockFetcher) FetchTable(ctx context.Context, table string) ([]model.TabularRecord, error) {
	return m.fetchTableFunc(ctx, table)
}

func recordsFromJSON(t *testing.T, raw string) []model.TabularRecord {
	t.Helper()
	var records []model.TabularRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		t.Fatalf("レコードの解析に失敗した: %v", err)
	}
	return records
}

func TestViewer_Load_BuildsView(t *testing.T) {
	records := recordsFromJSON(t, `[
		{"id":"rec1","fields":{"Title (Final)":"インボイス入門","Internal Notes":"draft","Duration":"12:30"}},
		{"id":"rec2","fields":{"Title (Final)":"青色申告のメリット","Duration":"08:15"}}
	]`)
	fetcher := &mockFetcher{
		fetchTableFunc: func(_ context.Context, _ string) ([]model.TabularRecord, error) {
			return records, nil
		},
	}
	viewer := NewViewer(fetcher, NewPresenter(&passthroughSanitizer{}, language.Japanese))

	view, err := viewer.Load(context.Background(), "Videos")
	if err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}

	wantColumns := []ColumnView{
		{Field: "Title (Final)", Label: "Title"},
		{Field: "Duration", Label: "Duration"},
	}
	if !reflect.DeepEqual(view.Columns, wantColumns) {
		t.Errorf("Columns = %+v, want %+v", view.Columns, wantColumns)
	}
	if len(view.Rows) != 2 {
		t.Fatalf("行数 = %d, want 2", len(view.Rows))
	}
	// ソートキー（Title (Final)）順: 青色申告（あ行の後のせ...）の前にインボイス
	if view.Rows[0].ID != "rec1" {
		t.Errorf("先頭行 = %q, want rec1", view.Rows[0].ID)
	}
	if view.Warning != nil {
		t.Errorf("Warning = %+v, want nil", view.Warning)
	}
	if got := view.Rows[0].Cells[0]; got.Text != "インボイス入門" {
		t.Errorf("先頭セル = %+v", got)
	}
}

func TestViewer_Load_EmptyResultCarriesWarning(t *testing.T) {
	fetcher := &mockFetcher{
		fetchTableFunc: func(_ context.Context, _ string) ([]model.TabularRecord, error) {
			return []model.TabularRecord{}, nil
		},
	}
	viewer := NewViewer(fetcher, NewPresenter(&passthroughSanitizer{}, language.Japanese))

	view, err := viewer.Load(context.Background(), "Videos")
	if err != nil {
		t.Fatalf("空の結果はエラーではない: %v", err)
	}
	if view.Warning == nil || view.Warning.Code != model.ErrCodeNoRecords {
		t.Errorf("Warning = %+v, want NO_RECORDS", view.Warning)
	}
	if len(view.Rows) != 0 || len(view.Columns) != 0 {
		t.Error("空の結果で行やカラムが生成された")
	}
}

func TestViewer_Load_MissingFieldRendersEmptyCell(t *testing.T) {
	records := recordsFromJSON(t, `[
		{"id":"rec1","fields":{"Name":"a","Extra":"x"}},
		{"id":"rec2","fields":{"Name":"b"}}
	]`)
	fetcher := &mockFetcher{
		fetchTableFunc: func(_ context.Context, _ string) ([]model.TabularRecord, error) {
			return records, nil
		},
	}
	viewer := NewViewer(fetcher, NewPresenter(&passthroughSanitizer{}, language.Japanese))

	view, err := viewer.Load(context.Background(), "Unknown")
	if err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}
	if got := view.Rows[1].Cells[1]; got.Kind != CellEmpty {
		t.Errorf("欠損フィールドのセル = %+v, want 空セル", got)
	}
}

func TestViewer_Load_StaleResponseDoesNotOverwrite(t *testing.T) {
	slowStarted := make(chan struct{})
	slowRelease := make(chan struct{})

	fetcher := &mockFetcher{
		fetchTableFunc: func(_ context.Context, table string) ([]model.TabularRecord, error) {
			if table == "Slow" {
				close(slowStarted)
				<-slowRelease
			}
			return recordsFromJSON(t, `[{"id":"`+table+`","fields":{"Name":"v"}}]`), nil
		},
	}
	viewer := NewViewer(fetcher, NewPresenter(&passthroughSanitizer{}, language.Japanese))

	// 古いリクエストを開始し、フェッチ中のまま保留する
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := viewer.Load(context.Background(), "Slow"); err != nil {
			t.Errorf("Load(Slow) がエラーを返した: %v", err)
		}
	}()
	<-slowStarted

	// 新しいリクエストが先に完了する
	if _, err := viewer.Load(context.Background(), "Fresh"); err != nil {
		t.Fatalf("Load(Fresh) がエラーを返した: %v", err)
	}

	// 古いリクエストの応答が後から到着しても表示状態は上書きされない
	close(slowRelease)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("古いリクエストが完了しない")
	}

	current := viewer.Current()
	if current == nil || current.Table != "Fresh" {
		t.Errorf("Current().Table = %v, want Fresh", current)
	}
}
