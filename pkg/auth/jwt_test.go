package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/tapforge/pkg/auth"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManager(t *testing.T) {
	Convey("Given a manager with an issuer", t, func() {
		m, err := auth.NewManager("s3cret", auth.WithIssuer("tapforge"))
		So(err, ShouldBeNil)

		Convey("When a token is minted and verified", func() {
			tok, err := m.Mint("alice")
			So(err, ShouldBeNil)
			sub, err := m.Verify(auth.BearerPrefix + tok)

			Convey("Then the subject is the player id", func() {
				So(err, ShouldBeNil)
				So(sub, ShouldEqual, "alice")
			})
		})

		Convey("When a token is signed with another secret", func() {
			other, _ := auth.NewManager("other", auth.WithIssuer("tapforge"))
			tok, _ := other.Mint("alice")
			_, err := m.Verify(tok)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, auth.ErrTokenInvalid), ShouldBeTrue)
			})
		})

		Convey("When a token has expired", func() {
			past := time.Now().Add(-48 * time.Hour)
			old, _ := auth.NewManager("s3cret", auth.WithIssuer("tapforge"), auth.WithClock(func() time.Time { return past }))
			tok, _ := old.Mint("alice")
			_, err := m.Verify(tok)

			Convey("Then it reports expiry", func() {
				So(errors.Is(err, auth.ErrTokenExpired), ShouldBeTrue)
			})
		})

		Convey("When the input is garbage", func() {
			_, err := m.Verify("not-a-token")
			So(errors.Is(err, auth.ErrTokenInvalid), ShouldBeTrue)
		})
	})

	Convey("Given an empty secret", t, func() {
		_, err := auth.NewManager("")
		So(errors.Is(err, auth.ErrSecretEmpty), ShouldBeTrue)
	})
}
