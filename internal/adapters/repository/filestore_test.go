package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/tally/internal/domain/model"
)

const fixedIV = "0CcixtBxH1VQ1z4DtKQsdw=="

func TestFileStore(t *testing.T) {
	convey.Convey("Given a settings file without IVs", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "settings.json")
		err := os.WriteFile(path, []byte(`[
			{"id": 1, "name": "Club", "spreadsheetLocator": "sheet-1", "outputCapacity": 100, "outputRetentionPeriodDays": 30},
			{"id": 2, "name": "Other", "spreadsheetLocator": "sheet-2"}
		]`), 0o600)
		convey.So(err, convey.ShouldBeNil)

		calls := 0
		store := NewFileStore(path, WithIVGenerator(func() (string, error) {
			calls++
			return fixedIV, nil
		}))

		convey.Convey("When loaded twice", func() {
			first, err := store.Load(ctx)
			convey.So(err, convey.ShouldBeNil)
			second, err := store.Load(ctx)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then IVs are generated once and persisted", func() {
				convey.So(calls, convey.ShouldEqual, 2)
				convey.So(first, convey.ShouldResemble, second)
				convey.So(first[0].MappingIV, convey.ShouldEqual, fixedIV)
				convey.So(first[0].OutputRetentionDays, convey.ShouldEqual, 30)
			})
		})

		convey.Convey("When a ledger is updated with a different IV", func() {
			_, err := store.Load(ctx)
			convey.So(err, convey.ShouldBeNil)
			saved, err := store.Upsert(ctx, model.Settings{ID: 1, Name: "Renamed", SpreadsheetLocator: "sheet-1", MappingIV: "AAAAAAAAAAAAAAAAAAAAAA=="})

			convey.Convey("Then the stored IV is kept", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(saved.MappingIV, convey.ShouldEqual, fixedIV)
				got, err := store.Get(ctx, 1)
				convey.So(err, convey.ShouldBeNil)
				convey.So(got.Name, convey.ShouldEqual, "Renamed")
			})
		})

		convey.Convey("When a new ledger is added", func() {
			saved, err := store.Upsert(ctx, model.Settings{ID: 3, SpreadsheetLocator: "sheet-3"})
			convey.So(err, convey.ShouldBeNil)
			convey.So(saved.MappingIV, convey.ShouldEqual, fixedIV)
			all, _ := store.Load(ctx)
			convey.So(all, convey.ShouldHaveLength, 3)
		})

		convey.Convey("When an unknown ledger is requested", func() {
			_, err := store.Get(ctx, 42)
			convey.So(errors.Is(err, ErrNotFound), convey.ShouldBeTrue)
		})

		convey.Convey("When an update would break validation", func() {
			_, err := store.Upsert(ctx, model.Settings{ID: 4})
			convey.So(errors.Is(err, ErrInvalidSettings), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given invalid settings files", t, func() {
		ctx := context.Background()
		dir := t.TempDir()

		cases := map[string]string{
			"duplicate ids":     `[{"id":1,"spreadsheetLocator":"a"},{"id":1,"spreadsheetLocator":"b"}]`,
			"missing locator":   `[{"id":1}]`,
			"negative capacity": `[{"id":1,"spreadsheetLocator":"a","outputCapacity":-1}]`,
			"bad iv":            `[{"id":1,"spreadsheetLocator":"a","mappingIv":"short"}]`,
			"not json":          `{`,
		}
		for name, body := range cases {
			convey.Convey("When the file has "+name, func() {
				path := filepath.Join(dir, name+".json")
				convey.So(os.WriteFile(path, []byte(body), 0o600), convey.ShouldBeNil)
				_, err := NewFileStore(path).Load(ctx)
				convey.So(errors.Is(err, ErrInvalidSettings), convey.ShouldBeTrue)
			})
		}
	})

	convey.Convey("Given no settings file", t, func() {
		store := NewFileStore(filepath.Join(t.TempDir(), "missing", "settings.json"))
		all, err := store.Load(context.Background())
		convey.So(err, convey.ShouldBeNil)
		convey.So(all, convey.ShouldBeEmpty)
	})
}
