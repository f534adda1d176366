package sheetsync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tally/internal/adapters/memory"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/sheetsync"
)

const locator = "ledger-sheet"

func sampleSnapshot() model.Snapshot {
	social := model.NewEvent("Social", time.Date(2024, 9, 12, 0, 0, 0, 0, time.UTC), 0,
		model.Source{Locator: "signin-1", Kind: model.SourceTabular})
	social.Token = "tok"
	social.Attendees["JD123"] = struct{}{}
	meeting := model.NewEvent("Meeting", time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), 1,
		model.Source{Locator: "form-1", Kind: model.SourceForm})
	meeting.Attendees["JD123"] = struct{}{}
	meeting.Attendees["AB456"] = struct{}{}

	jd := model.NewMember("JD123")
	jd.Fill(model.AttrFirstName, "Jane")
	jd.Fill(model.AttrGraduationYear, "2026")
	jd.Fall, jd.Spring = 10, 5
	jd.Normalize()
	ab := model.NewMember("AB456")
	ab.Spring = 5
	ab.Normalize()

	return model.Snapshot{
		LedgerID: 1,
		Categories: []model.Category{
			{ID: 0, Name: "Social", Points: 10},
			{ID: 1, Name: "Meeting", Points: 5},
		},
		Events:  []model.Event{social, meeting},
		Members: []model.Member{jd, ab},
	}
}

func TestEncode(t *testing.T) {
	Convey("Given a snapshot", t, func() {
		snap := sampleSnapshot()

		Convey("When encoded with categories", func() {
			out := sheetsync.Encode(snap, true)

			Convey("Then every reserved range is present", func() {
				So(out[sheetsync.RangeCategories], ShouldResemble, [][]string{
					{"0", "Social", "10"},
					{"1", "Meeting", "5"},
				})
				So(out[sheetsync.RangeEvents][0], ShouldResemble,
					[]string{"0", "Social", "09/12/2024", "signin-1", "tabular", "0", "tok"})
				So(out[sheetsync.RangeMembers][0], ShouldResemble,
					[]string{"0", "Jane", "", "JD123", "", "", "", "", "2026", "10", "5", "15"})
			})

			Convey("And attendance marks each member per event", func() {
				So(out[sheetsync.RangeAttendance], ShouldResemble, [][]string{
					{"Social", "Meeting"},
					{"0", "1"},
					{"X", "X"},
					{"", "X"},
				})
			})
		})

		Convey("When encoded without categories", func() {
			out := sheetsync.Encode(snap, false)
			_, ok := out[sheetsync.RangeCategories]
			So(ok, ShouldBeFalse)
			So(out, ShouldContainKey, sheetsync.RangeEvents)
		})

		Convey("When encoded twice", func() {
			So(cmp.Diff(sheetsync.Encode(snap, true), sheetsync.Encode(snap, true)), ShouldBeEmpty)
		})
	})
}

func TestPublishAndLoad(t *testing.T) {
	Convey("Given a publisher over an in-memory spreadsheet", t, func() {
		ctx := context.Background()
		sheet := memory.NewSpreadsheet()
		pub := sheetsync.NewPublisher(sheet)
		snap := sampleSnapshot()

		Convey("When a stale range holds extra rows", func() {
			sheet.Set(locator, sheetsync.RangeMembers, [][]string{{"0"}, {"1"}, {"2"}, {"3"}})
			So(pub.Publish(ctx, locator, snap, true), ShouldBeNil)

			Convey("Then publishing replaces it entirely", func() {
				So(len(sheet.Get(locator, sheetsync.RangeMembers)), ShouldEqual, 2)
			})
		})

		Convey("When published twice", func() {
			So(pub.Publish(ctx, locator, snap, true), ShouldBeNil)
			first := map[string][][]string{}
			for _, r := range []string{sheetsync.RangeCategories, sheetsync.RangeEvents, sheetsync.RangeMembers, sheetsync.RangeAttendance} {
				first[r] = sheet.Get(locator, r)
			}
			So(pub.Publish(ctx, locator, snap, true), ShouldBeNil)

			Convey("Then the cells are identical", func() {
				for r, rows := range first {
					So(cmp.Diff(rows, sheet.Get(locator, r)), ShouldBeEmpty)
				}
			})
		})

		Convey("When the spreadsheet rejects writes", func() {
			sheet.FailWrites(errors.New("quota"))
			err := pub.Publish(ctx, locator, snap, false)
			So(errors.Is(err, sheetsync.ErrPublish), ShouldBeTrue)
		})

		Convey("When clearing fails", func() {
			sheet.FailClears(errors.New("forbidden"))
			err := pub.Publish(ctx, locator, snap, false)
			So(errors.Is(err, sheetsync.ErrPublish), ShouldBeTrue)
			So(sheet.Writes(), ShouldEqual, 0)
		})

		Convey("When a published snapshot is loaded back", func() {
			So(pub.Publish(ctx, locator, snap, true), ShouldBeNil)
			rows, err := pub.Load(ctx, locator)
			So(err, ShouldBeNil)

			Convey("Then categories, events and members round trip", func() {
				So(rows.Categories, ShouldResemble, snap.Categories)
				So(rows.Events, ShouldHaveLength, 2)
				So(rows.Events[1].Source, ShouldResemble, model.Source{Locator: "form-1", Kind: model.SourceForm})
				So(rows.Events[0].Token, ShouldEqual, "tok")
				So(rows.Members[0].Key, ShouldEqual, "JD123")
				So(rows.Members[0].FirstName.Value(), ShouldEqual, "Jane")
				So(rows.Members[0].Total, ShouldEqual, 15)
				So(rows.Skipped, ShouldBeEmpty)
			})

			Convey("And each event carries its attendance column", func() {
				So(rows.Events[0].Attendees, ShouldResemble, map[string]struct{}{"JD123": {}})
				So(rows.Events[1].Attendees, ShouldResemble, map[string]struct{}{"JD123": {}, "AB456": {}})
			})
		})

		Convey("When reading fails", func() {
			sheet.FailReads(errors.New("offline"))
			_, err := pub.Load(ctx, locator)
			So(errors.Is(err, sheetsync.ErrLoad), ShouldBeTrue)
		})
	})
}

func TestDecode(t *testing.T) {
	Convey("Given hand-edited rows", t, func() {
		Convey("When a category has non-numeric points", func() {
			_, err := sheetsync.Decode([][]string{{"0", "Social", "ten"}}, nil, nil, nil)
			So(errors.Is(err, sheetsync.ErrMalformedRange), ShouldBeTrue)
		})

		Convey("When events and members are malformed", func() {
			rows, err := sheetsync.Decode(
				[][]string{{"0", "Social", "10"}, {}},
				[][]string{
					{"0", "Good", "9/1/2024", "s", "tabular", "0"},
					{"1", "Bad date", "someday", "s", "tabular", "0"},
					{"2", "Bad kind", "09/01/2024", "s", "carrier pigeon", "0"},
				},
				[][]string{{"0", "No", "Key"}, {"1", "", "", "K1", "", "", "", "", "", "4", "x", "99"}},
				[][]string{{"Good", "Bad date", "Bad kind"}, {"0", "1", "2"}, {"X"}, {"X", "X"}},
			)
			So(err, ShouldBeNil)

			Convey("Then good rows survive and the rest are reported", func() {
				So(rows.Categories, ShouldHaveLength, 1)
				So(rows.Events, ShouldHaveLength, 1)
				So(rows.Members, ShouldHaveLength, 1)
				So(rows.Members[0].Total, ShouldEqual, 4)
				So(rows.Skipped, ShouldHaveLength, 3)
				So(rows.SkippedEvents, ShouldHaveLength, 2)
			})

			Convey("And attendance is read for keyed members only", func() {
				So(rows.Events[0].Attendees, ShouldResemble, map[string]struct{}{"K1": {}})
			})
		})

		Convey("When member rows were renumbered by hand", func() {
			rows, err := sheetsync.Decode(nil, nil,
				[][]string{
					{"7", "", "", "K2", "", "", "", "", "", "1", "0", "1"},
					{"7", "", "", "K1", "", "", "", "", "", "2", "0", "2"},
				},
				nil,
			)
			So(err, ShouldBeNil)

			Convey("Then members are keyed by external id, not the ordinal", func() {
				So(rows.Members, ShouldHaveLength, 2)
				So(rows.Members[0].Key, ShouldEqual, "K2")
				So(rows.Members[1].Key, ShouldEqual, "K1")
				So(rows.Members[1].Total, ShouldEqual, 2)
				So(rows.Skipped, ShouldBeEmpty)
			})
		})

		Convey("When the attendance matrix is missing", func() {
			rows, err := sheetsync.Decode(nil,
				[][]string{{"0", "Good", "9/1/2024", "s", "tabular", "0"}},
				[][]string{{"0", "", "", "K1"}},
				nil,
			)
			So(err, ShouldBeNil)
			So(rows.Events[0].Attendees, ShouldBeEmpty)
		})
	})
}

func TestWriteQuestionPrompt(t *testing.T) {
	Convey("Given a publisher", t, func() {
		ctx := context.Background()
		sheet := memory.NewSpreadsheet()
		pub := sheetsync.NewPublisher(sheet)
		sheet.Set(locator, sheetsync.RangeQuestionMapRows, [][]string{{"old", "", "9", "Email"}})

		Convey("When writing a prompt", func() {
			err := pub.WriteQuestionPrompt(ctx, locator, 3, []sheetsync.PromptRow{
				{Question: "Your EID", QuestionID: "2", Attribute: model.AttrExternalID},
				{Question: "Comments", QuestionID: "5"},
			})
			So(err, ShouldBeNil)

			Convey("Then the regions hold the event id and the questions", func() {
				So(sheet.Get(locator, sheetsync.RangeQuestionMapEventID), ShouldResemble, [][]string{{"", "", "3"}})
				So(sheet.Get(locator, sheetsync.RangeQuestionMapRows), ShouldResemble, [][]string{
					{"Your EID", "", "2", "External ID"},
					{"Comments", "", "5", ""},
				})
			})
		})
	})
}

func TestWriteCommandValues(t *testing.T) {
	Convey("Given a command region with row labels", t, func() {
		ctx := context.Background()
		sheet := memory.NewSpreadsheet()
		pub := sheetsync.NewPublisher(sheet)
		sheet.Set(locator, sheetsync.RangeUpsertCategoryCmd, [][]string{{"ID"}, {"Name", "", "stale"}, {"Points"}})

		Convey("When values are written", func() {
			err := pub.WriteCommandValues(ctx, locator, sheetsync.RangeUpsertCategoryCmd, []string{"0", "Social", "10"})

			Convey("Then only the value column changes", func() {
				So(err, ShouldBeNil)
				So(sheet.Get(locator, sheetsync.RangeUpsertCategoryCmd), ShouldResemble, [][]string{
					{"ID", "", "0"},
					{"Name", "", "Social"},
					{"Points", "", "10"},
				})
			})
		})

		Convey("When the spreadsheet rejects writes", func() {
			sheet.FailWrites(errors.New("quota"))
			err := pub.WriteCommandValues(ctx, locator, sheetsync.RangeUpsertCategoryCmd, []string{"0"})
			So(errors.Is(err, sheetsync.ErrPublish), ShouldBeTrue)
		})
	})
}
