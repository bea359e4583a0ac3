package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	goimage "image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DanelSchwartz/TeleScan-OCR/internal/data"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/image"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/logger"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/match"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/metrics"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/ocr"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/source"
	"github.com/DanelSchwartz/TeleScan-OCR/internal/writer"
)

const testChat int64 = -1001234567890

// fakeSource serves canned messages; photo bytes are keyed by PhotoSize.Ref.
type fakeSource struct {
	mu           sync.Mutex
	chats        []source.Chat
	history      map[int64][]source.Message
	photos       map[string][]byte
	downloadErr  error
	resolveErr   error
	live         chan source.Message
	historyLimit []int
}

func (f *fakeSource) Chats(ctx context.Context, limit int) ([]source.Chat, error) {
	return f.chats, nil
}

func (f *fakeSource) Resolve(ctx context.Context, ref source.ChatRef) (source.Chat, error) {
	if f.resolveErr != nil {
		return source.Chat{}, f.resolveErr
	}
	return source.Chat{ID: ref.ID}, nil
}

// History ignores limit on purpose so the pipeline's own bound is tested.
func (f *fakeSource) History(ctx context.Context, chatID int64, limit int) ([]source.Message, error) {
	f.mu.Lock()
	f.historyLimit = append(f.historyLimit, limit)
	f.mu.Unlock()
	return f.history[chatID], nil
}

func (f *fakeSource) Subscribe(ctx context.Context, chatID int64) (<-chan source.Message, error) {
	return f.live, nil
}

func (f *fakeSource) Download(ctx context.Context, msg source.Message, size source.PhotoSize, dst string) error {
	if f.downloadErr != nil {
		return &source.DownloadError{ChatID: msg.ChatID, MessageID: msg.ID, Err: f.downloadErr}
	}
	return os.WriteFile(dst, f.photos[size.Ref], 0o644)
}

func (f *fakeSource) Close() error { return nil }

// fakeEngine answers by message id, parsed from the variant filename.
type fakeEngine struct {
	mu      sync.Mutex
	texts   map[int]string
	err     error
	calls   int
	started chan struct{}
	release chan struct{}
}

func (e *fakeEngine) ProcessImage(ctx context.Context, imagePath string, languages []string) (string, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.started != nil {
		e.started <- struct{}{}
		<-e.release
	}
	if e.err != nil {
		return "", e.err
	}
	parts := strings.Split(filepath.Base(imagePath), "_")
	id, _ := strconv.Atoi(parts[1])
	return e.texts[id], nil
}

func (e *fakeEngine) Close() error { return nil }

type failingSink struct{}

func (failingSink) Append(rec data.MatchRecord) error {
	return &writer.SinkWriteError{Op: "write", Path: "export.json", Err: errors.New("disk full")}
}

func pngBytes(t *testing.T, img goimage.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	return buf.Bytes()
}

func checkerboard(size, cell int) *goimage.Gray {
	img := goimage.NewGray(goimage.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func flat(size int) *goimage.Gray {
	img := goimage.NewGray(goimage.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return img
}

func photoMessage(id int, ref string) source.Message {
	return source.Message{
		ID:       id,
		ChatID:   testChat,
		SenderID: 777,
		Date:     time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Photos: []source.PhotoSize{
			{Type: "s", Width: 90, Height: 90, Size: 10, Ref: "thumb"},
			{Type: "y", Width: 64, Height: 64, Size: 1000, Ref: ref},
		},
	}
}

type harness struct {
	src     *fakeSource
	engine  *fakeEngine
	workDir string
	outDir  string
	sink    Sink
	opts    Options
	images  func(*image.Options)
	keyword []string
}

func newHarness(t *testing.T) *harness {
	root := t.TempDir()
	return &harness{
		src: &fakeSource{
			history: map[int64][]source.Message{},
			photos: map[string][]byte{
				"clear":   pngBytes(t, checkerboard(64, 4)),
				"blurry":  pngBytes(t, flat(64)),
				"garbage": []byte("not an image"),
			},
		},
		engine:  &fakeEngine{texts: map[int]string{}},
		workDir: filepath.Join(root, "images"),
		outDir:  filepath.Join(root, "logs"),
		keyword: []string{"special offer"},
	}
}

func (h *harness) run(t *testing.T, ctx context.Context) (Report, error) {
	t.Helper()
	imgOpts := image.DefaultOptions()
	imgOpts.WorkDir = h.workDir
	if h.images != nil {
		h.images(&imgOpts)
	}

	matcher, err := match.NewMatcher(match.StrategyThreshold, h.keyword, 0.8)
	if err != nil {
		t.Fatal(err)
	}
	if h.sink == nil {
		w, err := writer.NewWriter(writer.FormatJSON, h.outDir)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { w.Close() })
		h.sink = w
	}

	opts := h.opts
	opts.WorkDir = h.workDir
	opts.CheckClarity = true
	if opts.Chat.IsZero() {
		opts.Chat = source.ChatRef{ID: testChat}
	}

	p := New(opts, Clients{
		Source:    h.src,
		Images:    image.NewImageProcessor(imgOpts, logger.Nop()),
		Extractor: ocr.NewExtractor(h.engine, "", time.Second, logger.Nop()),
		Matcher:   matcher,
		Sink:      h.sink,
		Metrics:   metrics.New(),
	}, logger.Nop())
	return p.Run(ctx)
}

func (h *harness) filesLeft(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.workDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRun_MatchRetainsExactlyOneFile(t *testing.T) {
	// Arrange
	h := newHarness(t)
	h.src.history[testChat] = []source.Message{photoMessage(42, "clear")}
	h.engine.texts[42] = "Special0ffer50%0ff"

	// Act
	report, err := h.run(t, context.Background())

	// Assert
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	rec, ok := report.Records[fmt.Sprintf("%d/42", testChat)]
	if !ok {
		t.Fatalf("expected a record, report=%+v", report)
	}
	if rec.Accuracy != "100.00%" {
		t.Errorf("expected accuracy 100.00%%, got %s", rec.Accuracy)
	}
	if rec.MessageLink != "https://t.me/c/1001234567890/42" {
		t.Errorf("unexpected link %s", rec.MessageLink)
	}
	if rec.SenderID != 777 || rec.Text != "Special0ffer50%0ff" {
		t.Errorf("unexpected record %+v", rec)
	}

	left := h.filesLeft(t)
	if len(left) != 1 || filepath.Join(h.workDir, left[0]) != rec.LocalImagePath {
		t.Errorf("expected only %s to remain, found %v", rec.LocalImagePath, left)
	}

	persisted, err := writer.ReadJSON(writer.OutputPath(h.outDir, writer.FormatJSON))
	if err != nil || len(persisted) != 1 {
		t.Fatalf("expected one persisted record, got %d (%v)", len(persisted), err)
	}
	if report.Outcomes[metrics.OutcomeRetained] != 1 {
		t.Errorf("expected retained outcome, got %v", report.Outcomes)
	}
}

func TestRun_NoFileLeftBehind(t *testing.T) {
	testCases := []struct {
		name    string
		ref     string
		text    string
		arrange func(h *harness)
		outcome string
		stage   string
	}{
		{name: "no keyword match", ref: "clear", text: "Nothing to see here", outcome: metrics.OutcomeCleaned},
		{name: "empty text", ref: "clear", text: "", outcome: metrics.OutcomeCleaned},
		{name: "blurry image skips OCR", ref: "blurry", text: "Special offer", outcome: metrics.OutcomeCleaned},
		{name: "download failure", ref: "clear", text: "Special offer",
			arrange: func(h *harness) { h.src.downloadErr = errors.New("connection reset") },
			outcome: metrics.OutcomeFailed, stage: StageDownload},
		{name: "decode failure", ref: "garbage", text: "Special offer",
			outcome: metrics.OutcomeFailed, stage: StageClarity},
		{name: "engine failure", ref: "clear",
			arrange: func(h *harness) { h.engine.err = errors.New("tesseract crashed") },
			outcome: metrics.OutcomeFailed, stage: StageExtract},
		{name: "sink failure", ref: "clear", text: "Special offer",
			arrange: func(h *harness) { h.sink = failingSink{} },
			outcome: metrics.OutcomeFailed, stage: StageSink},
		{name: "zero variants", ref: "clear", text: "Special offer",
			arrange: func(h *harness) { h.images = func(o *image.Options) { o.Filters = nil } },
			outcome: metrics.OutcomeCleaned},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			h := newHarness(t)
			h.src.history[testChat] = []source.Message{photoMessage(7, tc.ref)}
			h.engine.texts[7] = tc.text
			if tc.arrange != nil {
				tc.arrange(h)
			}

			// Act
			report, err := h.run(t, context.Background())

			// Assert
			if err != nil {
				t.Fatalf("message failures must not fail the run: %v", err)
			}
			if left := h.filesLeft(t); len(left) != 0 {
				t.Errorf("expected no files left, found %v", left)
			}
			if len(report.Records) != 0 {
				t.Errorf("expected no records, got %v", report.Records)
			}
			if report.Outcomes[tc.outcome] != 1 {
				t.Errorf("expected outcome %s, got %v", tc.outcome, report.Outcomes)
			}
			if tc.stage != "" {
				var serr *StageError
				failure := report.Failures[fmt.Sprintf("%d/7", testChat)]
				if !errors.As(failure, &serr) || serr.Stage != tc.stage {
					t.Errorf("expected %s stage error, got %v", tc.stage, failure)
				}
			}
		})
	}
}

func TestRun_BlurryImageNeverReachesOCR(t *testing.T) {
	h := newHarness(t)
	h.src.history[testChat] = []source.Message{photoMessage(1, "blurry")}

	if _, err := h.run(t, context.Background()); err != nil {
		t.Fatal(err)
	}

	if h.engine.calls != 0 {
		t.Errorf("expected no OCR calls, got %d", h.engine.calls)
	}
}

func TestRun_EmptyKeywordsReportNotApplicable(t *testing.T) {
	h := newHarness(t)
	h.keyword = nil
	h.src.history[testChat] = []source.Message{photoMessage(3, "clear")}
	h.engine.texts[3] = "any legible text"

	report, err := h.run(t, context.Background())

	if err != nil {
		t.Fatal(err)
	}
	rec := report.Records[fmt.Sprintf("%d/3", testChat)]
	if rec.Accuracy != data.NotApplicable {
		t.Errorf("expected N/A accuracy, got %q", rec.Accuracy)
	}
}

func TestRun_HistoricalModeIsBounded(t *testing.T) {
	// Arrange
	h := newHarness(t)
	msgs := make([]source.Message, 0, 500)
	for id := 500; id >= 1; id-- {
		msgs = append(msgs, source.Message{ID: id, ChatID: testChat})
	}
	h.src.history[testChat] = msgs
	h.opts.HistoryLimit = 100
	h.opts.Workers = 4

	// Act
	report, err := h.run(t, context.Background())

	// Assert
	if err != nil {
		t.Fatal(err)
	}
	if got := report.Outcomes[metrics.OutcomeNoPhoto]; got != 100 {
		t.Errorf("expected exactly 100 messages processed, got %d", got)
	}
	if len(h.src.historyLimit) != 1 || h.src.historyLimit[0] != 100 {
		t.Errorf("expected one history call with limit 100, got %v", h.src.historyLimit)
	}
}

func TestRun_AllDialogsWhenNoTarget(t *testing.T) {
	h := newHarness(t)
	h.src.chats = []source.Chat{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}}
	h.src.history[1] = []source.Message{{ID: 10, ChatID: 1}}
	h.src.history[2] = []source.Message{{ID: 20, ChatID: 2}, {ID: 19, ChatID: 2}}

	imgOpts := image.DefaultOptions()
	imgOpts.WorkDir = h.workDir
	matcher, _ := match.NewMatcher(match.StrategyThreshold, nil, 0.8)
	p := New(Options{Mode: ModeHistorical, WorkDir: h.workDir}, Clients{
		Source:    h.src,
		Images:    image.NewImageProcessor(imgOpts, logger.Nop()),
		Extractor: ocr.NewExtractor(h.engine, "", time.Second, logger.Nop()),
		Matcher:   matcher,
		Sink:      failingSink{},
	}, logger.Nop())

	report, err := p.Run(context.Background())

	if err != nil {
		t.Fatal(err)
	}
	if report.Outcomes[metrics.OutcomeNoPhoto] != 3 {
		t.Errorf("expected 3 messages across dialogs, got %v", report.Outcomes)
	}
}

func TestRun_ResolveFailureStopsRun(t *testing.T) {
	h := newHarness(t)
	h.src.resolveErr = source.ErrChatNotFound

	_, err := h.run(t, context.Background())

	if !errors.Is(err, source.ErrChatNotFound) {
		t.Errorf("expected ErrChatNotFound, got %v", err)
	}
}

func TestRun_SharpestVariantOnly(t *testing.T) {
	h := newHarness(t)
	h.images = func(o *image.Options) {
		o.Filters = image.FilterSet{{Op: image.OpEnhance, Factor: 2}, {Op: image.OpContrast, Factor: 1.5}}
	}
	h.opts.Variants = VariantsSharpest
	h.src.history[testChat] = []source.Message{photoMessage(5, "clear")}
	h.engine.texts[5] = "nothing"

	if _, err := h.run(t, context.Background()); err != nil {
		t.Fatal(err)
	}

	if h.engine.calls != 1 {
		t.Errorf("expected OCR on one variant, got %d calls", h.engine.calls)
	}
	if left := h.filesLeft(t); len(left) != 0 {
		t.Errorf("expected no files left, found %v", left)
	}
}

func TestRun_LiveCancellationFinishesInFlightMessage(t *testing.T) {
	// Arrange
	h := newHarness(t)
	h.opts.Mode = ModeLive
	h.src.live = make(chan source.Message)
	h.engine.texts[9] = "special offer today"
	h.engine.started = make(chan struct{})
	h.engine.release = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	type outcome struct {
		report Report
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := h.run(t, ctx)
		done <- outcome{report, err}
	}()

	// Act
	h.src.live <- photoMessage(9, "clear")
	<-h.engine.started
	cancel()
	close(h.engine.release)

	// Assert
	var res outcome
	select {
	case res = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("pipeline did not stop after cancellation")
	}
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if res.report.Outcomes[metrics.OutcomeRetained] != 1 {
		t.Fatalf("in-flight message did not reach a terminal state: %+v", res.report)
	}
	records, err := writer.ReadJSON(writer.OutputPath(h.outDir, writer.FormatJSON))
	if err != nil || len(records) != 1 || records[0].MessageID != 9 {
		t.Fatalf("expected the in-flight record in the sink, got %v (%v)", records, err)
	}
	if left := h.filesLeft(t); len(left) != 1 || filepath.Join(h.workDir, left[0]) != records[0].LocalImagePath {
		t.Errorf("expected only the retained file, found %v", left)
	}
}

func TestRun_LiveReportOnlyCountsOutcomes(t *testing.T) {
	// Arrange
	h := newHarness(t)
	h.opts.Mode = ModeLive
	h.opts.Workers = 4
	h.src.live = make(chan source.Message)
	numMessages := 200
	for i := 1; i <= numMessages; i += 4 {
		h.engine.texts[i] = "special offer"
	}
	refs := []string{"clear", "blurry", "garbage", "clear"}

	type outcome struct {
		report Report
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := h.run(t, context.Background())
		done <- outcome{report, err}
	}()

	// Act
	for i := 1; i <= numMessages; i++ {
		h.src.live <- photoMessage(i, refs[(i-1)%len(refs)])
	}
	close(h.src.live)

	// Assert
	var res outcome
	select {
	case res = <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("pipeline did not stop after the subscription closed")
	}
	if res.err != nil {
		t.Fatalf("unexpected error: %v", res.err)
	}
	if len(res.report.Records) != 0 || len(res.report.Failures) != 0 {
		t.Errorf("expected no per-message entries in a live report, got %d records and %d failures",
			len(res.report.Records), len(res.report.Failures))
	}
	quarter := numMessages / 4
	expected := map[string]int{
		metrics.OutcomeRetained: quarter,
		metrics.OutcomeCleaned:  2 * quarter,
		metrics.OutcomeFailed:   quarter,
	}
	for name, count := range expected {
		if res.report.Outcomes[name] != count {
			t.Errorf("expected %d %s, got %d", count, name, res.report.Outcomes[name])
		}
	}
	records, err := writer.ReadJSON(writer.OutputPath(h.outDir, writer.FormatJSON))
	if err != nil || len(records) != quarter {
		t.Errorf("expected %d records in the sink, got %d (%v)", quarter, len(records), err)
	}
}
