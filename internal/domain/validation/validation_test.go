package validation_test

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/okian/comet/internal/domain/validation"
	. "github.com/smartystreets/goconvey/convey"
)

var limits = validation.Limits{
	MaxScore:   250,
	MinSession: 8 * time.Second,
	SessionTTL: 20 * time.Minute,
}

func fieldOf(err error) string {
	var fe *validation.FieldError
	if errors.As(err, &fe) {
		return fe.Field
	}
	return ""
}

func TestPlayerID(t *testing.T) {
	Convey("Given player ids of various shapes", t, func() {
		Convey("Then surrounding whitespace is trimmed", func() {
			id, err := validation.PlayerID("  abc123 \n")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, "abc123")
		})

		Convey("Then blank ids are required", func() {
			_, err := validation.PlayerID("   ")
			So(errors.Is(err, validation.ErrInvalid), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "playerId: is required")
		})

		Convey("Then length is bounded to [3,128]", func() {
			_, err := validation.PlayerID("ab")
			So(errors.Is(err, validation.ErrInvalid), ShouldBeTrue)
			_, err = validation.PlayerID("abc")
			So(err, ShouldBeNil)
			_, err = validation.PlayerID(strings.Repeat("x", 128))
			So(err, ShouldBeNil)
			_, err = validation.PlayerID(strings.Repeat("x", 129))
			So(errors.Is(err, validation.ErrInvalid), ShouldBeTrue)
		})

		Convey("Then length counts characters, not bytes", func() {
			_, err := validation.PlayerID("äöü")
			So(err, ShouldBeNil)
		})
	})
}

func TestScore(t *testing.T) {
	Convey("Given a per-session maximum of 250", t, func() {
		cases := []struct {
			in float64
			ok bool
		}{
			{0, true},
			{40, true},
			{250, true},
			{251, false},
			{-1, false},
			{12.5, false},
			{math.NaN(), false},
			{math.Inf(1), false},
		}
		for _, c := range cases {
			got, err := validation.Score(c.in, 250)
			if c.ok {
				So(err, ShouldBeNil)
				So(got, ShouldEqual, int(c.in))
			} else {
				So(errors.Is(err, validation.ErrInvalid), ShouldBeTrue)
				So(fieldOf(err), ShouldEqual, "score")
			}
		}
	})
}

func TestDuration(t *testing.T) {
	Convey("Given duration bounds of 8s to 20m", t, func() {
		Convey("Then the bounds are inclusive", func() {
			d, err := validation.Duration(8000, limits.MinSession, limits.SessionTTL)
			So(err, ShouldBeNil)
			So(d, ShouldEqual, 8*time.Second)
			_, err = validation.Duration(float64(limits.SessionTTL.Milliseconds()), limits.MinSession, limits.SessionTTL)
			So(err, ShouldBeNil)
		})

		Convey("Then short, long and non-finite values are rejected", func() {
			for _, ms := range []float64{3000, 7999, 1_200_001, math.NaN(), math.Inf(-1)} {
				_, err := validation.Duration(ms, limits.MinSession, limits.SessionTTL)
				So(errors.Is(err, validation.ErrInvalid), ShouldBeTrue)
				So(fieldOf(err), ShouldEqual, "durationMs")
			}
		})
	})
}

func TestFinish(t *testing.T) {
	Convey("Given a well-formed finish", t, func() {
		in := validation.FinishInput{SessionID: " s-1 ", PlayerID: " abc123 ", Score: 40, DurationMs: 12000}

		Convey("When validated", func() {
			got, err := validation.Finish(in, limits)

			Convey("Then it is normalized", func() {
				So(err, ShouldBeNil)
				So(got, ShouldResemble, validation.FinishRequest{
					SessionID: "s-1",
					PlayerID:  "abc123",
					Score:     40,
					Duration:  12 * time.Second,
				})
			})
		})

		Convey("When the duration is below the minimum", func() {
			in.DurationMs = 3000
			_, err := validation.Finish(in, limits)
			So(fieldOf(err), ShouldEqual, "durationMs")
		})

		Convey("When the session id is missing", func() {
			in.SessionID = ""
			_, err := validation.Finish(in, limits)
			So(fieldOf(err), ShouldEqual, "sessionId")
		})

		Convey("When several fields are bad", func() {
			in.PlayerID = "x"
			in.Score = -3
			_, err := validation.Finish(in, limits)

			Convey("Then the first failing check is reported", func() {
				So(fieldOf(err), ShouldEqual, "playerId")
			})
		})
	})
}
