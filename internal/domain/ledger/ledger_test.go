package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tally/internal/adapters/audit"
	"github.com/okian/tally/internal/adapters/memory"
	"github.com/okian/tally/internal/domain/codec"
	"github.com/okian/tally/internal/domain/ledger"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/sheetsync"
	"github.com/okian/tally/pkg/logger"
)

func init() {
	_ = logger.Init()
}

const (
	sheetLocator = "ledger-sheet"
	testIV       = "0CcixtBxH1VQ1z4DtKQsdw=="
)

type fixture struct {
	sheet  *memory.Spreadsheet
	forms  *memory.Forms
	codec  *codec.Codec
	sink   *audit.MemorySink
	ledger *ledger.Ledger
}

func newFixture() *fixture {
	key, err := codec.DeriveKey("test secret")
	So(err, ShouldBeNil)
	c, err := codec.New(key, testIV)
	So(err, ShouldBeNil)

	f := &fixture{
		sheet: memory.NewSpreadsheet(),
		forms: memory.NewForms(),
		codec: c,
		sink:  audit.NewMemorySink(),
	}
	log := logger.Get().Named("ledger-test")
	f.ledger = ledger.New(
		model.Settings{ID: 7, Name: "Club", SpreadsheetLocator: sheetLocator, MappingIV: testIV},
		c,
		ledger.WithPublisher(sheetsync.NewPublisher(f.sheet)),
		ledger.WithTabularSource(f.sheet),
		ledger.WithFormSource(f.forms),
		ledger.WithAuditLog(audit.NewLog(log, f.sink)),
		ledger.WithLogger(log),
	)
	return f
}

func (f *fixture) token(pairs ...model.Mapping) string {
	tok, err := f.codec.Encode(model.NewQuestionMap(pairs...))
	So(err, ShouldBeNil)
	return tok
}

func (f *fixture) categories(rows ...[]string) {
	f.sheet.Set(sheetLocator, sheetsync.RangeCategories, rows)
}

func (f *fixture) events(rows ...[]string) {
	f.sheet.Set(sheetLocator, sheetsync.RangeEvents, rows)
}

func (f *fixture) signIn(locator string, rows ...[]string) {
	f.sheet.Set(locator, sheetsync.RangeSignIn, rows)
}

var eidFirst = []model.Mapping{
	{QuestionID: "0", Attribute: model.AttrExternalID},
	{QuestionID: "1", Attribute: model.AttrFirstName},
}

func member(snap model.Snapshot, key string) model.Member {
	m, ok := snap.Member(key)
	So(ok, ShouldBeTrue)
	return m
}

func TestFullReload(t *testing.T) {
	Convey("Given a spreadsheet with one category and one tabular event", t, func() {
		ctx := context.Background()
		f := newFixture()
		f.categories([]string{"0", "Social", "10"})
		f.events([]string{"0", "Kickoff", "09/05/2024", "signin-kickoff", "tabular", "0", f.token(eidFirst...)})
		f.signIn("signin-kickoff", []string{"EID", "First"}, []string{"JD123", "Jane"}, []string{"  ", "Nobody"})

		Convey("When the ledger is fully reloaded", func() {
			So(f.ledger.FullReload(ctx), ShouldBeNil)
			snap := f.ledger.Snapshot()

			Convey("Then the new member earns the category points in the fall bucket", func() {
				So(snap.Members, ShouldHaveLength, 1)
				jd := member(snap, "JD123")
				So(jd.FirstName.Value(), ShouldEqual, "Jane")
				So(jd.Total, ShouldEqual, 10)
				So(jd.Fall, ShouldEqual, 10)
				So(jd.Spring, ShouldEqual, 0)
				So(snap.Events[0].HasAttendee("JD123"), ShouldBeTrue)
				So(f.ledger.Ready(), ShouldBeTrue)
			})
		})

		Convey("When the sheet already lists the member with points", func() {
			f.sheet.Set(sheetLocator, sheetsync.RangeMembers, [][]string{
				{"0", "Janet", "Doe", "JD123", "", "", "", "", "", "30", "5", "0"},
			})
			f.signIn("signin-kickoff", []string{"EID", "First"}, []string{"JD123", "Jane"}, []string{"AB456", "Al"})
			So(f.ledger.FullReload(ctx), ShouldBeNil)
			snap := f.ledger.Snapshot()

			Convey("Then trusted members keep their totals and newcomers earn points", func() {
				jd := member(snap, "JD123")
				So(jd.Total, ShouldEqual, 35)
				So(jd.FirstName.Value(), ShouldEqual, "Janet")
				So(jd.LastName.Value(), ShouldEqual, "Doe")
				So(member(snap, "AB456").Total, ShouldEqual, 10)
				So(snap.Events[0].AttendeeKeys(), ShouldResemble, []string{"AB456", "JD123"})
			})
		})

		Convey("When the spreadsheet cannot be read after a successful load", func() {
			So(f.ledger.FullReload(ctx), ShouldBeNil)
			before := f.ledger.Snapshot()
			f.sheet.FailReads(errors.New("offline"))
			err := f.ledger.FullReload(ctx)

			Convey("Then the last known good state is kept", func() {
				So(errors.Is(err, ledger.ErrReload), ShouldBeTrue)
				So(cmp.Diff(before, f.ledger.Snapshot(), cmp.AllowUnexported(model.QuestionMap{}, model.Field[string]{}, model.Field[int]{}, model.Field[time.Time]{})), ShouldBeEmpty)
			})
		})

		Convey("When an event references a missing category or carries a bad token", func() {
			f.events(
				[]string{"0", "Kickoff", "09/05/2024", "signin-kickoff", "tabular", "0", "garbage!"},
				[]string{"1", "Orphan", "09/06/2024", "signin-kickoff", "tabular", "4", ""},
			)
			So(f.ledger.FullReload(ctx), ShouldBeNil)
			snap := f.ledger.Snapshot()

			Convey("Then the orphan is skipped and the unreadable map is empty", func() {
				So(snap.Events, ShouldHaveLength, 1)
				So(snap.Events[0].Questions.IsEmpty(), ShouldBeTrue)
				So(snap.Members, ShouldBeEmpty)
				all, _ := f.sink.ListAll(ctx)
				So(len(all), ShouldBeGreaterThanOrEqualTo, 2)
			})
		})

		Convey("When a sign-in source fails", func() {
			f.events(
				[]string{"0", "Kickoff", "09/05/2024", "signin-kickoff", "tabular", "0", f.token(eidFirst...)},
				[]string{"1", "Broken", "09/06/2024", "signin-broken", "tabular", "0", f.token(eidFirst...)},
			)
			f.sheet.FailDocument("signin-broken", errors.New("permission denied"))
			err := f.ledger.FullReload(ctx)

			Convey("Then the other events still ingest and the error is reported", func() {
				So(errors.Is(err, ledger.ErrSourceIngestion), ShouldBeTrue)
				So(member(f.ledger.Snapshot(), "JD123").Total, ShouldEqual, 10)
			})
		})
	})

	Convey("Given a published ledger whose sign-in sheet later fails", t, func() {
		ctx := context.Background()
		f := newFixture()
		f.categories([]string{"0", "Social", "10"})
		f.events([]string{"0", "Kickoff", "09/05/2024", "signin-kickoff", "tabular", "0", f.token(eidFirst...)})
		f.signIn("signin-kickoff", []string{"EID", "First"}, []string{"JD123", "Jane"})
		So(f.ledger.FullReload(ctx), ShouldBeNil)
		pub := f.ledger.Publisher()
		So(pub.Publish(ctx, sheetLocator, f.ledger.Snapshot(), false), ShouldBeNil)

		f.sheet.FailDocument("signin-kickoff", errors.New("permission denied"))

		Convey("When the same ledger is fully reloaded", func() {
			err := f.ledger.FullReload(ctx)
			snap := f.ledger.Snapshot()

			Convey("Then the event keeps its attendees without double points", func() {
				So(errors.Is(err, ledger.ErrSourceIngestion), ShouldBeTrue)
				So(snap.Events[0].HasAttendee("JD123"), ShouldBeTrue)
				So(member(snap, "JD123").Total, ShouldEqual, 10)
			})

			Convey("And publishing again keeps the attendance mark", func() {
				So(pub.Publish(ctx, sheetLocator, snap, false), ShouldBeNil)
				So(f.sheet.Get(sheetLocator, sheetsync.RangeAttendance)[2], ShouldResemble, []string{"X"})
			})
		})

		Convey("When a freshly started ledger loads the same spreadsheet", func() {
			restarted := ledger.New(
				model.Settings{ID: 7, Name: "Club", SpreadsheetLocator: sheetLocator, MappingIV: testIV},
				f.codec,
				ledger.WithPublisher(sheetsync.NewPublisher(f.sheet)),
				ledger.WithTabularSource(f.sheet),
			)
			err := restarted.FullReload(ctx)
			snap := restarted.Snapshot()

			Convey("Then attendance comes from the spreadsheet's attendance column", func() {
				So(errors.Is(err, ledger.ErrSourceIngestion), ShouldBeTrue)
				So(snap.Events[0].HasAttendee("JD123"), ShouldBeTrue)
				So(member(snap, "JD123").Total, ShouldEqual, 10)
			})
		})
	})

	Convey("Given an event row the ledger cannot read", t, func() {
		ctx := context.Background()
		f := newFixture()
		f.categories([]string{"0", "Social", "10"})
		f.events(
			[]string{"0", "Kickoff", "09/05/2024", "signin-kickoff", "tabular", "0", ""},
			[]string{"1", "Typo", "someday", "signin-kickoff", "tabular", "0", ""},
		)
		So(f.ledger.FullReload(ctx), ShouldBeNil)

		Convey("Then publishing is held so the row is not erased", func() {
			So(errors.Is(f.ledger.Held(), ledger.ErrPublishHeld), ShouldBeTrue)
			err := f.ledger.Exec(ctx, func(tx *ledger.Tx) error { return tx.Held() })
			So(errors.Is(err, ledger.ErrPublishHeld), ShouldBeTrue)
		})

		Convey("When the row is fixed and the ledger reloaded", func() {
			f.events(
				[]string{"0", "Kickoff", "09/05/2024", "signin-kickoff", "tabular", "0", ""},
				[]string{"1", "Typo", "09/06/2024", "signin-kickoff", "tabular", "0", ""},
			)
			So(f.ledger.FullReload(ctx), ShouldBeNil)

			Convey("Then publishing resumes", func() {
				So(f.ledger.Held(), ShouldBeNil)
				So(f.ledger.Snapshot().Events, ShouldHaveLength, 2)
			})
		})
	})

	Convey("Given a ledger that was never loaded", t, func() {
		f := newFixture()

		Convey("Then mutations and soft reloads are refused", func() {
			err := f.ledger.Exec(context.Background(), func(*ledger.Tx) error { return nil })
			So(errors.Is(err, ledger.ErrNotReady), ShouldBeTrue)
			So(errors.Is(f.ledger.SoftReload(context.Background()), ledger.ErrNotReady), ShouldBeTrue)
		})
	})
}

func TestIngestion(t *testing.T) {
	Convey("Given a loaded ledger", t, func() {
		ctx := context.Background()
		f := newFixture()
		f.categories([]string{"0", "Social", "10"}, []string{"1", "Meeting", "5"})
		So(f.ledger.FullReload(ctx), ShouldBeNil)

		Convey("When two columns are mapped to the external id", func() {
			f.signIn("dup", []string{"Old EID", "New EID"}, []string{"OLD1", "NEW1"})
			err := f.ledger.Exec(ctx, func(tx *ledger.Tx) error {
				id, err := tx.AddEvent("Dup", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), 1,
					model.Source{Locator: "dup", Kind: model.SourceTabular})
				So(err, ShouldBeNil)
				So(tx.SetQuestionMap(id, model.NewQuestionMap(
					model.Mapping{QuestionID: "0", Attribute: model.AttrExternalID},
					model.Mapping{QuestionID: "1", Attribute: model.AttrExternalID},
				)), ShouldBeNil)
				return tx.IngestEvent(ctx, id)
			})
			So(err, ShouldBeNil)

			Convey("Then only the last registered column is consulted", func() {
				snap := f.ledger.Snapshot()
				So(snap.Members, ShouldHaveLength, 1)
				nw := member(snap, "NEW1")
				So(nw.Spring, ShouldEqual, 5)
				So(nw.Total, ShouldEqual, 5)
			})
		})

		Convey("When a form event is ingested", func() {
			f.forms.SetQuestions("form-1", model.Question{ID: "q-eid", Title: "EID"}, model.Question{ID: "q-year", Title: "Year"})
			f.forms.AddResponse("form-1", map[string]string{"q-eid": "JD123", "q-year": "2027"})
			f.forms.AddResponse("form-1", map[string]string{"q-eid": "JD123", "q-year": "2030"})
			f.forms.AddResponse("form-1", map[string]string{"q-year": "2026"})
			err := f.ledger.Exec(ctx, func(tx *ledger.Tx) error {
				id, err := tx.AddEvent("Meeting", time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), 1,
					model.Source{Locator: "form-1", Kind: model.SourceForm})
				So(err, ShouldBeNil)
				So(tx.SetQuestionMap(id, model.NewQuestionMap(
					model.Mapping{QuestionID: "q-eid", Attribute: model.AttrExternalID},
					model.Mapping{QuestionID: "q-year", Attribute: model.AttrGraduationYear},
				)), ShouldBeNil)
				return tx.IngestEvent(ctx, id)
			})
			So(err, ShouldBeNil)

			Convey("Then repeated responses count once and the first answer sticks", func() {
				jd := member(f.ledger.Snapshot(), "JD123")
				So(jd.Fall, ShouldEqual, 5)
				So(jd.Total, ShouldEqual, 5)
				year, ok := jd.GraduationYear.Get()
				So(ok, ShouldBeTrue)
				So(year, ShouldEqual, 2027)
			})
		})

		Convey("When an event has an unknown source kind", func() {
			err := f.ledger.Exec(ctx, func(tx *ledger.Tx) error {
				id, err := tx.AddEvent("Odd", time.Now(), 0, model.Source{Locator: "x", Kind: "pigeon"})
				So(err, ShouldBeNil)
				So(tx.SetQuestionMap(id, model.NewQuestionMap(model.Mapping{QuestionID: "0", Attribute: model.AttrExternalID})), ShouldBeNil)
				return tx.IngestEvent(ctx, id)
			})
			So(errors.Is(err, ledger.ErrUnknownSourceKind), ShouldBeTrue)
		})

		Convey("When an event has no external id mapping", func() {
			f.signIn("nomap", []string{"EID"}, []string{"JD123"})
			err := f.ledger.Exec(ctx, func(tx *ledger.Tx) error {
				id, _ := tx.AddEvent("Unmapped", time.Now(), 0, model.Source{Locator: "nomap", Kind: model.SourceTabular})
				return tx.IngestEvent(ctx, id)
			})

			Convey("Then ingestion is a no-op", func() {
				So(err, ShouldBeNil)
				So(f.ledger.Snapshot().Members, ShouldBeEmpty)
			})
		})
	})
}

func TestMutations(t *testing.T) {
	Convey("Given JD123 attended a 10 point event", t, func() {
		ctx := context.Background()
		f := newFixture()
		f.categories([]string{"0", "Social", "10"}, []string{"1", "Meeting", "5"})
		f.events([]string{"0", "Kickoff", "09/05/2024", "signin-kickoff", "tabular", "0", f.token(eidFirst...)})
		f.signIn("signin-kickoff", []string{"EID", "First"}, []string{"JD123", "Jane"})
		f.signIn("signin-second", []string{"EID", "First"}, []string{"JD123", "Jane"})
		So(f.ledger.FullReload(ctx), ShouldBeNil)

		addSecond := func() {
			err := f.ledger.Exec(ctx, func(tx *ledger.Tx) error {
				id, err := tx.AddEvent("Second", time.Date(2024, 9, 20, 0, 0, 0, 0, time.UTC), 1,
					model.Source{Locator: "signin-second", Kind: model.SourceTabular})
				if err != nil {
					return err
				}
				if err := tx.SetQuestionMap(id, model.NewQuestionMap(eidFirst...)); err != nil {
					return err
				}
				if err := tx.IngestEvent(ctx, id); err != nil {
					return err
				}
				return tx.SoftReload(ctx)
			})
			So(err, ShouldBeNil)
		}

		Convey("When a 5 point event is added and then deleted", func() {
			addSecond()
			So(member(f.ledger.Snapshot(), "JD123").Total, ShouldEqual, 15)

			err := f.ledger.Exec(ctx, func(tx *ledger.Tx) error {
				if err := tx.RemoveEvent(1); err != nil {
					return err
				}
				return tx.SoftReload(ctx)
			})
			So(err, ShouldBeNil)

			Convey("Then the total returns to 10", func() {
				snap := f.ledger.Snapshot()
				So(member(snap, "JD123").Total, ShouldEqual, 10)
				So(snap.Events, ShouldHaveLength, 1)
			})
		})

		Convey("When the category points change from 10 to 20", func() {
			f.sheet.FailDocument("signin-kickoff", errors.New("unreachable"))
			err := f.ledger.Exec(ctx, func(tx *ledger.Tx) error {
				return tx.SetCategory(0, "Social", 20)
			})
			So(err, ShouldBeNil)

			Convey("Then attendees gain the difference without re-ingestion", func() {
				jd := member(f.ledger.Snapshot(), "JD123")
				So(jd.Total, ShouldEqual, 20)
				So(jd.Fall, ShouldEqual, 20)
			})
		})

		Convey("When a category is deleted and its events remapped", func() {
			err := f.ledger.Exec(ctx, func(tx *ledger.Tx) error {
				return tx.RemoveCategory(0, 1)
			})
			So(err, ShouldBeNil)

			Convey("Then events move to the replacement and ids are renumbered", func() {
				snap := f.ledger.Snapshot()
				So(snap.Categories, ShouldResemble, []model.Category{{ID: 0, Name: "Meeting", Points: 5}})
				So(snap.Events[0].CategoryID, ShouldEqual, 0)
				So(member(snap, "JD123").Total, ShouldEqual, 5)
			})
		})

		Convey("When a source fails during a soft reload", func() {
			addSecond()
			f.sheet.FailDocument("signin-second", errors.New("quota"))
			err := f.ledger.SoftReload(ctx)

			Convey("Then that event keeps its attendance and points", func() {
				So(errors.Is(err, ledger.ErrSourceIngestion), ShouldBeTrue)
				snap := f.ledger.Snapshot()
				So(snap.Events[1].HasAttendee("JD123"), ShouldBeTrue)
				So(member(snap, "JD123").Total, ShouldEqual, 15)
			})
		})

		Convey("When an event's source is changed", func() {
			err := f.ledger.Exec(ctx, func(tx *ledger.Tx) error {
				return tx.UpdateEvent(0, "Kickoff", time.Date(2024, 9, 5, 0, 0, 0, 0, time.UTC), 0,
					model.Source{Locator: "elsewhere", Kind: model.SourceTabular})
			})
			So(err, ShouldBeNil)

			Convey("Then the mapping and attendance are dropped", func() {
				snap := f.ledger.Snapshot()
				So(snap.Events[0].Questions.IsEmpty(), ShouldBeTrue)
				So(snap.Events[0].Token, ShouldBeEmpty)
				So(snap.Events[0].Attendees, ShouldBeEmpty)
				So(member(snap, "JD123").Total, ShouldEqual, 0)
			})
		})

		Convey("When an event moves to the spring semester", func() {
			err := f.ledger.Exec(ctx, func(tx *ledger.Tx) error {
				return tx.UpdateEvent(0, "Kickoff", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), 0,
					model.Source{Locator: "signin-kickoff", Kind: model.SourceTabular})
			})
			So(err, ShouldBeNil)

			Convey("Then its points move bucket", func() {
				jd := member(f.ledger.Snapshot(), "JD123")
				So(jd.Fall, ShouldEqual, 0)
				So(jd.Spring, ShouldEqual, 10)
				So(jd.Total, ShouldEqual, 10)
			})
		})

		Convey("When a snapshot is modified by the caller", func() {
			snap := f.ledger.Snapshot()
			snap.Events[0].Attendees["INTRUDER"] = struct{}{}
			snap.Categories[0].Points = 999

			Convey("Then the ledger is unaffected", func() {
				again := f.ledger.Snapshot()
				So(again.Events[0].HasAttendee("INTRUDER"), ShouldBeFalse)
				So(again.Categories[0].Points, ShouldEqual, 10)
			})
		})
	})
}

func TestStandingsAndPrompt(t *testing.T) {
	Convey("Given members with different totals", t, func() {
		ctx := context.Background()
		f := newFixture()
		f.categories([]string{"0", "Social", "10"})
		f.sheet.Set(sheetLocator, sheetsync.RangeMembers, [][]string{
			{"0", "", "", "CC", "", "", "", "", "", "5", "0"},
			{"1", "", "", "AA", "", "", "", "", "", "5", "0"},
			{"2", "", "", "BB", "", "", "", "", "", "9", "9"},
		})
		f.events([]string{"0", "Kickoff", "09/05/2024", "signin-kickoff", "tabular", "0", f.token(eidFirst...)})
		f.signIn("signin-kickoff", []string{"Your EID", "First name"})
		So(f.ledger.FullReload(ctx), ShouldBeNil)

		Convey("Then standings sort by total then key", func() {
			keys := func(ms []model.Member) []string {
				var out []string
				for _, m := range ms {
					out = append(out, m.Key)
				}
				return out
			}
			So(keys(f.ledger.Standings(0)), ShouldResemble, []string{"BB", "AA", "CC"})
			So(keys(f.ledger.Standings(2)), ShouldResemble, []string{"BB", "AA"})
		})

		Convey("Then the question prompt lists header columns with their mapping", func() {
			rows, err := f.ledger.QuestionPrompt(ctx, 0)
			So(err, ShouldBeNil)
			So(rows, ShouldResemble, []sheetsync.PromptRow{
				{Question: "Your EID", QuestionID: "0", Attribute: model.AttrExternalID},
				{Question: "First name", QuestionID: "1", Attribute: model.AttrFirstName},
			})
		})

		Convey("Then tokens round trip through the ledger", func() {
			q := model.NewQuestionMap(eidFirst...)
			tok, err := f.ledger.MappingToken(q)
			So(err, ShouldBeNil)
			back, err := f.ledger.MapFromToken(tok)
			So(err, ShouldBeNil)
			So(back.Equal(q), ShouldBeTrue)

			_, err = f.ledger.MapFromToken("nope")
			So(errors.Is(err, codec.ErrDecode), ShouldBeTrue)
		})
	})
}
