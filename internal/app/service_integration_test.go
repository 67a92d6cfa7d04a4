package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	service "github.com/okian/comet/internal/app"
	"github.com/okian/comet/internal/domain/errs"
	"github.com/okian/comet/internal/domain/model"
	"github.com/okian/comet/internal/domain/session"
	. "github.com/smartystreets/goconvey/convey"
)

// waitFor polls cond until it holds or two seconds pass.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func TestServiceIntegration_ConcurrentFinish(t *testing.T) {
	Convey("Given one open session and many concurrent finishers", t, func() {
		ctx := context.Background()
		awarder := &fakeAwarder{}
		svc := newService(clockwork.NewFakeClockAt(t0), awarder, service.WithWorkerCount(8))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		sess, err := svc.StartSession(ctx, "abc123")
		So(err, ShouldBeNil)

		const callers = 32
		var ok, replay atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := svc.FinishSession(ctx, finish(sess.ID, 40, 12000))
				switch {
				case err == nil:
					ok.Add(1)
				case errors.Is(err, session.ErrAlreadySubmitted):
					replay.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		Convey("Then exactly one finish succeeds and one award is made", func() {
			So(ok.Load(), ShouldEqual, 1)
			So(replay.Load(), ShouldEqual, callers-1)
			So(awarder.callCount(), ShouldEqual, 1)

			b, _ := svc.Bucket(ctx, "abc123")
			So(b.PointsAccrued, ShouldEqual, 40)
		})
	})

	Convey("Given many players finishing concurrently", t, func() {
		ctx := context.Background()
		awarder := &fakeAwarder{}
		svc := newService(clockwork.NewFakeClockAt(t0), awarder)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		const players = 20
		var wg sync.WaitGroup
		var failures atomic.Int32
		for i := 0; i < players; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				pid := fmt.Sprintf("player-%02d", i)
				for k := 0; k < 5; k++ {
					sess, err := svc.StartSession(ctx, pid)
					if err != nil {
						failures.Add(1)
						continue
					}
					in := finish(sess.ID, 10, 12000)
					in.PlayerID = pid
					if _, err := svc.FinishSession(ctx, in); err != nil {
						failures.Add(1)
					}
				}
			}(i)
		}
		wg.Wait()

		Convey("Then every player accrued exactly its own scores", func() {
			So(failures.Load(), ShouldEqual, 0)
			So(awarder.callCount(), ShouldEqual, players*5)
			for i := 0; i < players; i++ {
				b, ok := svc.Bucket(ctx, fmt.Sprintf("player-%02d", i))
				So(ok, ShouldBeTrue)
				So(b.SessionCount, ShouldEqual, 5)
				So(b.PointsAccrued, ShouldEqual, 50)
			}
		})
	})
}

func TestServiceIntegration_Backpressure(t *testing.T) {
	Convey("Given one award worker, a queue of one and a blocked points service", t, func() {
		ctx := context.Background()
		awarder := &fakeAwarder{gate: make(chan struct{}), entered: make(chan struct{}, 4)}
		svc := newService(clockwork.NewFakeClockAt(t0), awarder,
			service.WithWorkerCount(1),
			service.WithQueueSize(1),
			service.WithAwardTimeout(5*time.Second),
		)
		So(svc.Start(ctx), ShouldBeNil)

		var ids []string
		for i := 0; i < 3; i++ {
			sess, err := svc.StartSession(ctx, "abc123")
			So(err, ShouldBeNil)
			ids = append(ids, sess.ID)
		}

		results := make(chan error, 2)
		go func() {
			_, err := svc.FinishSession(ctx, finish(ids[0], 40, 12000))
			results <- err
		}()
		<-awarder.entered

		go func() {
			_, err := svc.FinishSession(ctx, finish(ids[1], 40, 12000))
			results <- err
		}()
		So(waitFor(func() bool { return svc.GetStats()["queueLength"] == 1 }), ShouldBeTrue)

		Convey("When a third finish arrives", func() {
			_, err := svc.FinishSession(ctx, finish(ids[2], 40, 12000))

			Convey("Then it is refused for capacity and fully rolled back", func() {
				So(errors.Is(err, errs.ErrCapacity), ShouldBeTrue)
				So(errors.Is(err, service.ErrQueueRejected), ShouldBeTrue)

				got, _ := svc.Session(ctx, ids[2])
				So(got.State, ShouldEqual, model.StateOpen)
				b, _ := svc.Bucket(ctx, "abc123")
				So(b.PointsPending, ShouldEqual, 80)
			})

			Convey("Then the queued finishes complete once the service unblocks", func() {
				close(awarder.gate)
				So(<-results, ShouldBeNil)
				So(<-results, ShouldBeNil)
				So(svc.Stop(ctx), ShouldBeNil)

				b, _ := svc.Bucket(ctx, "abc123")
				So(b.PointsAccrued, ShouldEqual, 80)
				So(b.PointsPending, ShouldEqual, 0)
			})
		})

		Reset(func() {
			select {
			case <-awarder.gate:
			default:
				close(awarder.gate)
			}
			_ = svc.Stop(ctx)
		})
	})
}

func TestServiceIntegration_CallerDisconnect(t *testing.T) {
	Convey("Given a finish whose caller goes away during the award call", t, func() {
		ctx := context.Background()
		awarder := &fakeAwarder{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
		svc := newService(clockwork.NewFakeClockAt(t0), awarder)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		sess, err := svc.StartSession(ctx, "abc123")
		So(err, ShouldBeNil)

		reqCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			_, err := svc.FinishSession(reqCtx, finish(sess.ID, 40, 12000))
			done <- err
		}()
		<-awarder.entered
		cancel()
		callerErr := <-done

		Convey("Then the caller sees a cancellation while the claim is held", func() {
			So(errors.Is(callerErr, context.Canceled), ShouldBeTrue)
			got, _ := svc.Session(ctx, sess.ID)
			So(got.State, ShouldEqual, model.StateClaimed)

			Convey("And the worker still resolves the claim", func() {
				close(awarder.gate)
				So(waitFor(func() bool {
					got, _ := svc.Session(ctx, sess.ID)
					return got.State == model.StateSubmitted
				}), ShouldBeTrue)

				So(waitFor(func() bool {
					b, _ := svc.Bucket(ctx, "abc123")
					return b.PointsAccrued == 40
				}), ShouldBeTrue)
			})
		})
	})

	Convey("Given a points service slower than the award timeout", t, func() {
		ctx := context.Background()
		awarder := &fakeAwarder{gate: make(chan struct{})}
		svc := newService(clockwork.NewFakeClockAt(t0), awarder, service.WithAwardTimeout(30*time.Millisecond))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()
		defer close(awarder.gate)

		sess, _ := svc.StartSession(ctx, "abc123")
		_, err := svc.FinishSession(ctx, finish(sess.ID, 40, 12000))

		Convey("Then the finish fails upstream and the session is retryable", func() {
			So(errors.Is(err, errs.ErrUpstream), ShouldBeTrue)
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			got, _ := svc.Session(ctx, sess.ID)
			So(got.State, ShouldEqual, model.StateOpen)
		})
	})
}
