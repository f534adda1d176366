package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/tally/internal/domain/dedupe"
)

func TestInMemoryQueue(t *testing.T) {
	convey.Convey("Given a queue with capacity 2", t, func() {
		ctx := context.Background()
		q := NewInMemoryQueue(WithCapacity(2))

		convey.Convey("When a job is enqueued and dequeued", func() {
			job := NewJob(1, KindRefresh)
			convey.So(q.Enqueue(ctx, job), convey.ShouldBeNil)
			convey.So(q.Len(ctx), convey.ShouldEqual, 1)

			got := <-q.Dequeue(ctx)

			convey.Convey("Then the same job comes out", func() {
				convey.So(got, convey.ShouldResemble, job)
				convey.So(q.Len(ctx), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the queue is full", func() {
			convey.So(q.Enqueue(ctx, NewJob(1, KindRefresh)), convey.ShouldBeNil)
			convey.So(q.Enqueue(ctx, NewJob(2, KindRefresh)), convey.ShouldBeNil)
			err := q.Enqueue(ctx, NewJob(3, KindRefresh))

			convey.Convey("Then enqueue fails with ErrFull", func() {
				convey.So(errors.Is(err, ErrFull), convey.ShouldBeTrue)
				convey.So(q.Len(ctx), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the queue is closed", func() {
			convey.So(q.Enqueue(ctx, NewJob(1, KindPoll)), convey.ShouldBeNil)
			convey.So(q.Close(), convey.ShouldBeNil)

			convey.Convey("Then enqueue fails and dequeue drains then closes", func() {
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
				convey.So(errors.Is(q.Enqueue(ctx, NewJob(2, KindPoll)), ErrClosed), convey.ShouldBeTrue)

				out := q.Dequeue(ctx)
				_, ok := <-out
				convey.So(ok, convey.ShouldBeTrue)
				select {
				case _, ok = <-out:
					convey.So(ok, convey.ShouldBeFalse)
				case <-time.After(time.Second):
					t.Error("expected dequeue channel to close")
				}
				convey.So(q.Close(), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a queue with a deduper", t, func() {
		ctx := context.Background()
		q := NewInMemoryQueue(WithCapacity(4), WithDeduper(dedupe.NewInMemoryDeduper()))

		convey.Convey("When the same ledger job is enqueued twice", func() {
			first := q.Enqueue(ctx, NewJob(1, KindRefresh))
			second := q.Enqueue(ctx, NewJob(1, KindRefresh))
			other := q.Enqueue(ctx, NewJob(1, KindPoll))

			convey.Convey("Then the duplicate is refused", func() {
				convey.So(first, convey.ShouldBeNil)
				convey.So(errors.Is(second, ErrPending), convey.ShouldBeTrue)
				convey.So(other, convey.ShouldBeNil)
				convey.So(q.Len(ctx), convey.ShouldEqual, 2)
			})

			convey.Convey("And the first is released", func() {
				q.Release(ctx, NewJob(1, KindRefresh))

				convey.Convey("Then it can be queued again", func() {
					convey.So(q.Enqueue(ctx, NewJob(1, KindRefresh)), convey.ShouldBeNil)
				})
			})
		})

		convey.Convey("When a job is refused because the queue is full", func() {
			small := NewInMemoryQueue(WithCapacity(1), WithDeduper(dedupe.NewInMemoryDeduper()))
			convey.So(small.Enqueue(ctx, NewJob(1, KindRefresh)), convey.ShouldBeNil)
			convey.So(errors.Is(small.Enqueue(ctx, NewJob(2, KindRefresh)), ErrFull), convey.ShouldBeTrue)

			convey.Convey("Then its key is not left claimed", func() {
				<-small.Dequeue(ctx)
				convey.So(small.Enqueue(ctx, NewJob(2, KindRefresh)), convey.ShouldBeNil)
			})
		})
	})
}

func TestInMemoryQueueConcurrentAccess(t *testing.T) {
	convey.Convey("Given producers and consumers sharing a queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q := NewInMemoryQueue(WithCapacity(16))
		const producers, jobsEach = 8, 50

		var consumed sync.WaitGroup
		consumed.Add(producers * jobsEach)
		for range 4 {
			go func() {
				for range q.Dequeue(ctx) {
					consumed.Done()
				}
			}()
		}

		var wg sync.WaitGroup
		for p := range producers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range jobsEach {
					for q.Enqueue(ctx, NewJob(p, KindPoll)) != nil {
						time.Sleep(time.Millisecond)
					}
				}
			}()
		}
		wg.Wait()
		consumed.Wait()

		convey.So(q.Len(ctx), convey.ShouldEqual, 0)
	})
}
