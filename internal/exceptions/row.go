package exceptions

import "sync"

// Row is one rendered exception event.
type Row struct {
	When     string `json:"when"`
	Asset    string `json:"asset"`
	Rule     string `json:"rule"`
	Duration string `json:"duration"`
}

type NoticeKind string

const (
	NoticeInfo  NoticeKind = "info"
	NoticeError NoticeKind = "error"
)

// Notice is a full-width row shown instead of data rows.
type Notice struct {
	Kind NoticeKind `json:"kind"`
	Text string     `json:"text"`
}

// Surface is where a query cycle renders.
type Surface interface {
	Clear()
	ShowLoading()
	HideLoading()
	SetLoadingText(text string)
	AppendRow(row Row)
	ShowNotice(notice Notice)
}

// View is a point-in-time copy of what a Results surface shows.
type View struct {
	Rows        []Row   `json:"rows"`
	Notice      *Notice `json:"notice,omitempty"`
	Loading     bool    `json:"loading"`
	LoadingText string  `json:"loadingText,omitempty"`
}

// Results is an in-memory Surface.
type Results struct {
	mu          sync.Mutex
	rows        []Row
	notice      *Notice
	loading     bool
	loadingText string
}

func NewResults() *Results {
	return &Results{rows: make([]Row, 0)}
}

func (r *Results) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = make([]Row, 0)
	r.notice = nil
}

func (r *Results) ShowLoading() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = true
}

func (r *Results) HideLoading() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = false
}

func (r *Results) SetLoadingText(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadingText = text
}

func (r *Results) AppendRow(row Row) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, row)
}

func (r *Results) ShowNotice(notice Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notice = &notice
}

func (r *Results) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := View{
		Rows:        append([]Row(nil), r.rows...),
		Loading:     r.loading,
		LoadingText: r.loadingText,
	}
	if v.Rows == nil {
		v.Rows = make([]Row, 0)
	}
	if r.notice != nil {
		n := *r.notice
		v.Notice = &n
	}
	return v
}
