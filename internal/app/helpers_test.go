package service_test

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tally/internal/adapters/audit"
	"github.com/okian/tally/internal/adapters/memory"
	"github.com/okian/tally/internal/adapters/repository"
	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/codec"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/sheetsync"
	"github.com/okian/tally/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const (
	secret  = "test secret"
	testIV  = "0CcixtBxH1VQ1z4DtKQsdw=="
	clubID  = 1
	clubDoc = "club-sheet"
)

// slowSource delays sign-in sheet reads by a configurable amount.
type slowSource struct {
	*memory.Spreadsheet
	delay atomic.Int64
}

func (s *slowSource) ReadRows(ctx context.Context, locator, rng string) ([][]string, error) {
	time.Sleep(time.Duration(s.delay.Load()))
	return s.Spreadsheet.ReadRows(ctx, locator, rng)
}

type env struct {
	sheet  *memory.Spreadsheet
	source *slowSource
	store  *repository.FileStore
	sinks  map[int]*audit.MemorySink
	svc    *service.Service
}

// newEnv seeds one ledger whose single tabular event awards JD123 ten
// points, and returns a service that has not been started.
func newEnv(t *testing.T, opts ...service.Option) *env {
	e := &env{
		sheet: memory.NewSpreadsheet(),
		store: repository.NewFileStore(filepath.Join(t.TempDir(), "settings.json")),
		sinks: map[int]*audit.MemorySink{},
	}
	e.source = &slowSource{Spreadsheet: e.sheet}

	_, err := e.store.Upsert(context.Background(), model.Settings{
		ID: clubID, Name: "Club", SpreadsheetLocator: clubDoc, MappingIV: testIV, OutputCapacity: 50,
	})
	So(err, ShouldBeNil)

	e.sheet.Set(clubDoc, sheetsync.RangeCategories, [][]string{{"0", "Social", "10"}, {"1", "Meeting", "5"}})
	e.sheet.Set(clubDoc, sheetsync.RangeEvents, [][]string{
		{"0", "Kickoff", "09/05/2024", "signin-kickoff", "tabular", "0", token(model.Mapping{QuestionID: "0", Attribute: model.AttrExternalID})},
	})
	e.sheet.Set("signin-kickoff", sheetsync.RangeSignIn, [][]string{{"EID", "First"}, {"JD123", "Jane"}})

	base := []service.Option{
		service.WithSettingsStore(e.store),
		service.WithSpreadsheet(e.sheet),
		service.WithTabularSource(e.source),
		service.WithFormSource(memory.NewForms()),
		service.WithMappingKey(secret),
		service.WithWorkerCount(2),
		service.WithAuditSinks(func(s model.Settings) audit.Sink {
			sink := audit.NewMemorySink()
			e.sinks[s.ID] = sink
			return sink
		}),
	}
	e.svc = service.New(append(base, opts...)...)
	return e
}

func token(pairs ...model.Mapping) string {
	key, err := codec.DeriveKey(secret)
	So(err, ShouldBeNil)
	c, err := codec.New(key, testIV)
	So(err, ShouldBeNil)
	tok, err := c.Encode(model.NewQuestionMap(pairs...))
	So(err, ShouldBeNil)
	return tok
}

func totalOf(svc *service.Service, key string) int {
	rows, err := svc.Standings(clubID, 0)
	So(err, ShouldBeNil)
	for _, r := range rows {
		if r.Key == key {
			return r.Total
		}
	}
	return 0
}

// eventually polls cond until it holds or the deadline passes.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}
