package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	service "github.com/okian/comet/internal/app"
	"github.com/okian/comet/internal/domain/errs"
	"github.com/okian/comet/internal/domain/model"
	"github.com/okian/comet/internal/domain/session"
	"github.com/okian/comet/internal/domain/validation"
	"github.com/okian/comet/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var t0 = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeAwarder records awards and can fail or block on demand.
type fakeAwarder struct {
	mu      sync.Mutex
	calls   []int
	err     error
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeAwarder) Award(ctx context.Context, _, _ string, points int) error {
	f.mu.Lock()
	f.calls = append(f.calls, points)
	err, gate, entered := f.err, f.gate, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeAwarder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAwarder) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func newService(clk clockwork.Clock, a service.Awarder, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithClock(clk),
		service.WithAwarder(a),
		service.WithGameID("game-1"),
		service.WithWorkerCount(4),
		service.WithAwardTimeout(time.Second),
		service.WithSweepInterval(48 * time.Hour),
		service.WithLogger(logger.Nop()),
	}
	return service.New(append(base, opts...)...)
}

func finish(id string, score float64, durMs float64) validation.FinishInput {
	return validation.FinishInput{SessionID: id, PlayerID: "abc123", Score: score, DurationMs: durMs}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			So(svc.Limits(), ShouldResemble, service.DefaultLimits())
			So(svc.PointsConfigured(), ShouldBeFalse)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(8),
			service.WithQueueSize(50),
			service.WithShardCount(2),
			service.WithMaxTrackedSessions(10),
			service.WithStatsRetention(time.Hour),
			service.WithSweepInterval(time.Hour),
			service.WithAwarder(&fakeAwarder{}),
			service.WithGameID("game-1"),
		)

		Convey("Then it should reflect them", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 8)
			So(stats["queueSize"], ShouldEqual, 50)
			So(svc.PointsConfigured(), ShouldBeTrue)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx := context.Background()
		svc := newService(clockwork.NewFakeClockAt(t0), &fakeAwarder{})

		Convey("When starting the service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["queueLength"], ShouldEqual, 0)
			})

			Convey("Then stopping marks it stopped and refuses finishes", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(svc.Stop(ctx), ShouldBeNil)

				_, err := svc.FinishSession(ctx, finish("s", 40, 12000))
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}

func TestService_Scenarios(t *testing.T) {
	Convey("Given a started service with default limits", t, func() {
		ctx := context.Background()
		clk := clockwork.NewFakeClockAt(t0)
		awarder := &fakeAwarder{}
		svc := newService(clk, awarder)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When a session is started and finished with a valid score", func() {
			sess, err := svc.StartSession(ctx, "  abc123 ")
			So(err, ShouldBeNil)
			So(sess.PlayerID, ShouldEqual, "abc123")
			So(sess.StartedAt, ShouldEqual, t0)

			clk.Advance(12 * time.Second)
			res, err := svc.FinishSession(ctx, finish(sess.ID, 40, 12000))

			Convey("Then the points are saved and accrued", func() {
				So(err, ShouldBeNil)
				So(res.SavedPoints, ShouldEqual, 40)
				So(awarder.callCount(), ShouldEqual, 1)

				b, ok := svc.Bucket(ctx, "abc123")
				So(ok, ShouldBeTrue)
				So(b.PointsAccrued, ShouldEqual, 40)
				So(b.PointsPending, ShouldEqual, 0)
				So(b.SessionCount, ShouldEqual, 1)

				got, _ := svc.Session(ctx, sess.ID)
				So(got.State, ShouldEqual, model.StateSubmitted)
			})

			Convey("Then a second finish is rejected as already submitted", func() {
				_, err := svc.FinishSession(ctx, finish(sess.ID, 40, 12000))
				So(errors.Is(err, session.ErrAlreadySubmitted), ShouldBeTrue)
				So(errors.Is(err, errs.ErrSessionState), ShouldBeTrue)
				So(awarder.callCount(), ShouldEqual, 1)
			})
		})

		Convey("When a finish is too short", func() {
			sess, _ := svc.StartSession(ctx, "abc123")
			_, err := svc.FinishSession(ctx, finish(sess.ID, 40, 3000))

			Convey("Then it is a validation error without quota mutation", func() {
				So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
				So(awarder.callCount(), ShouldEqual, 0)
				b, _ := svc.Bucket(ctx, "abc123")
				So(b.PointsAccrued, ShouldEqual, 0)
				So(b.PointsPending, ShouldEqual, 0)

				got, _ := svc.Session(ctx, sess.ID)
				So(got.State, ShouldEqual, model.StateOpen)
			})
		})

		Convey("When a player starts 31 sessions in one day", func() {
			for i := 0; i < 30; i++ {
				_, err := svc.StartSession(ctx, "abc123")
				So(err, ShouldBeNil)
			}
			_, err := svc.StartSession(ctx, "abc123")

			Convey("Then the 31st is refused by quota", func() {
				So(errors.Is(err, errs.ErrQuotaExceeded), ShouldBeTrue)
				So(errors.Is(err, service.ErrDailySessionLimit), ShouldBeTrue)
			})

			Convey("Then the next UTC day admits again", func() {
				clk.Advance(13 * time.Hour)
				_, err := svc.StartSession(ctx, "abc123")
				So(err, ShouldBeNil)
			})
		})

		Convey("When the sweeper runs after the TTL on an untouched session", func() {
			sess, _ := svc.StartSession(ctx, "abc123")
			clk.Advance(20*time.Minute + time.Second)
			removed, _, err := svc.Reclaim(ctx)
			So(err, ShouldBeNil)
			So(removed, ShouldEqual, 1)

			Convey("Then a finish on that id reports not found", func() {
				_, err := svc.FinishSession(ctx, finish(sess.ID, 40, 12000))
				So(errors.Is(err, session.ErrNotFound), ShouldBeTrue)
				So(errors.Is(err, errs.ErrSessionState), ShouldBeTrue)
			})
		})

		Convey("When a finish arrives after the TTL but before a sweep", func() {
			sess, _ := svc.StartSession(ctx, "abc123")
			clk.Advance(20*time.Minute + time.Millisecond)
			_, err := svc.FinishSession(ctx, finish(sess.ID, 40, 12000))

			Convey("Then it is rejected as expired", func() {
				So(errors.Is(err, session.ErrExpired), ShouldBeTrue)
				So(awarder.callCount(), ShouldEqual, 0)
			})
		})

		Convey("When another player finishes the session", func() {
			sess, _ := svc.StartSession(ctx, "abc123")
			in := finish(sess.ID, 40, 12000)
			in.PlayerID = "xyz789"
			_, err := svc.FinishSession(ctx, in)

			Convey("Then it is rejected and the owner can still finish", func() {
				So(errors.Is(err, session.ErrPlayerMismatch), ShouldBeTrue)
				_, err := svc.FinishSession(ctx, finish(sess.ID, 40, 12000))
				So(err, ShouldBeNil)
			})
		})

		Convey("When a finish would exceed the daily points limit", func() {
			for i := 0; i < 12; i++ {
				sess, err := svc.StartSession(ctx, "abc123")
				So(err, ShouldBeNil)
				_, err = svc.FinishSession(ctx, finish(sess.ID, 250, 12000))
				So(err, ShouldBeNil)
			}
			sess, _ := svc.StartSession(ctx, "abc123")
			_, err := svc.FinishSession(ctx, finish(sess.ID, 1, 12000))

			Convey("Then it is refused before the external call and the session stays open", func() {
				So(errors.Is(err, errs.ErrQuotaExceeded), ShouldBeTrue)
				So(errors.Is(err, service.ErrDailyPointsLimit), ShouldBeTrue)
				So(awarder.callCount(), ShouldEqual, 12)

				b, _ := svc.Bucket(ctx, "abc123")
				So(b.PointsAccrued, ShouldEqual, 3000)

				got, _ := svc.Session(ctx, sess.ID)
				So(got.State, ShouldEqual, model.StateOpen)
			})

			Convey("Then a zero score is still accepted", func() {
				_, err := svc.FinishSession(ctx, finish(sess.ID, 0, 12000))
				So(err, ShouldBeNil)
			})
		})

		Convey("When the points service fails", func() {
			boom := errors.New("upstream unavailable")
			awarder.setErr(boom)
			sess, _ := svc.StartSession(ctx, "abc123")
			_, err := svc.FinishSession(ctx, finish(sess.ID, 40, 12000))

			Convey("Then the finish reports an upstream failure", func() {
				So(errors.Is(err, errs.ErrUpstream), ShouldBeTrue)
				So(errors.Is(err, boom), ShouldBeTrue)
			})

			Convey("Then the session is released and nothing accrued", func() {
				got, _ := svc.Session(ctx, sess.ID)
				So(got.State, ShouldEqual, model.StateOpen)
				b, _ := svc.Bucket(ctx, "abc123")
				So(b.PointsAccrued, ShouldEqual, 0)
				So(b.PointsPending, ShouldEqual, 0)
			})

			Convey("Then a retry succeeds once the service recovers", func() {
				awarder.setErr(nil)
				res, err := svc.FinishSession(ctx, finish(sess.ID, 40, 12000))
				So(err, ShouldBeNil)
				So(res.SavedPoints, ShouldEqual, 40)
			})
		})

		Convey("When the request is malformed", func() {
			_, err := svc.StartSession(ctx, "ab")
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)

			_, err = svc.FinishSession(ctx, finish("s", 251, 12000))
			So(errors.Is(err, errs.ErrValidation), ShouldBeTrue)
		})
	})
}

func TestService_NotConfigured(t *testing.T) {
	Convey("Given a service without a game id", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithAwarder(&fakeAwarder{}), service.WithLogger(logger.Nop()))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("Then sessions start but finishes are refused as not configured", func() {
			sess, err := svc.StartSession(ctx, "abc123")
			So(err, ShouldBeNil)
			_, err = svc.FinishSession(ctx, finish(sess.ID, 40, 12000))
			So(errors.Is(err, errs.ErrNotConfigured), ShouldBeTrue)
		})
	})
}

func TestService_Capacity(t *testing.T) {
	Convey("Given a service tracking at most two sessions", t, func() {
		ctx := context.Background()
		svc := newService(clockwork.NewFakeClockAt(t0), &fakeAwarder{}, service.WithMaxTrackedSessions(2))

		_, err := svc.StartSession(ctx, "p-1-x")
		So(err, ShouldBeNil)
		_, err = svc.StartSession(ctx, "p-2-x")
		So(err, ShouldBeNil)

		Convey("Then a third start is refused for capacity without spending quota", func() {
			_, err := svc.StartSession(ctx, "p-3-x")
			So(errors.Is(err, errs.ErrCapacity), ShouldBeTrue)
			_, ok := svc.Bucket(ctx, "p-3-x")
			So(ok, ShouldBeFalse)
		})
	})
}

// fullBlindStore never reports itself full, so capacity is only found by Create.
type fullBlindStore struct {
	session.Store
}

func (fullBlindStore) Full(context.Context) bool { return false }

func TestService_StartReleasesQuotaOnCreateFailure(t *testing.T) {
	Convey("Given a store whose id generator always returns the same id", t, func() {
		ctx := context.Background()
		store := session.NewInMemoryStore(session.WithIDGenerator(func() (string, error) { return "dup", nil }))
		svc := newService(clockwork.NewFakeClockAt(t0), &fakeAwarder{}, service.WithSessionStore(store))

		Convey("When the same player starts twice", func() {
			first, err := svc.StartSession(ctx, "abc123")
			So(err, ShouldBeNil)
			So(first.ID, ShouldEqual, "dup")

			_, err = svc.StartSession(ctx, "abc123")

			Convey("Then the colliding start fails and is not counted", func() {
				So(errors.Is(err, errs.ErrInternal), ShouldBeTrue)
				So(errors.Is(err, session.ErrIDCollision), ShouldBeTrue)
				b, ok := svc.Bucket(ctx, "abc123")
				So(ok, ShouldBeTrue)
				So(b.SessionCount, ShouldEqual, 1)
			})
		})
	})

	Convey("Given a store whose id generator fails", t, func() {
		ctx := context.Background()
		boom := errors.New("entropy exhausted")
		store := session.NewInMemoryStore(session.WithIDGenerator(func() (string, error) { return "", boom }))
		svc := newService(clockwork.NewFakeClockAt(t0), &fakeAwarder{}, service.WithSessionStore(store))

		Convey("Then the start fails without spending quota", func() {
			_, err := svc.StartSession(ctx, "abc123")
			So(errors.Is(err, boom), ShouldBeTrue)
			b, ok := svc.Bucket(ctx, "abc123")
			So(ok, ShouldBeTrue)
			So(b.SessionCount, ShouldEqual, 0)
		})
	})

	Convey("Given a store that fills up between the capacity check and Create", t, func() {
		ctx := context.Background()
		store := fullBlindStore{Store: session.NewInMemoryStore(session.WithMaxSessions(1))}
		svc := newService(clockwork.NewFakeClockAt(t0), &fakeAwarder{}, service.WithSessionStore(store))

		_, err := svc.StartSession(ctx, "p-1-x")
		So(err, ShouldBeNil)

		Convey("Then the losing start is refused for capacity and gives its quota back", func() {
			_, err := svc.StartSession(ctx, "abc123")
			So(errors.Is(err, errs.ErrCapacity), ShouldBeTrue)
			b, _ := svc.Bucket(ctx, "abc123")
			So(b.SessionCount, ShouldEqual, 0)
		})
	})

	Convey("Given many concurrent starts racing for a small table", t, func() {
		ctx := context.Background()
		svc := newService(clockwork.NewFakeClockAt(t0), &fakeAwarder{}, service.WithMaxTrackedSessions(5))

		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			won int
		)
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := svc.StartSession(ctx, "abc123"); err == nil {
					mu.Lock()
					won++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		Convey("Then only successful starts are counted against the quota", func() {
			So(won, ShouldEqual, 5)
			b, ok := svc.Bucket(ctx, "abc123")
			So(ok, ShouldBeTrue)
			So(b.SessionCount, ShouldEqual, won)
		})
	})
}
