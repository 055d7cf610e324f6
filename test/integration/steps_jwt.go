package integration

import (
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cucumber/godog"

	"github.com/doodlesbykumbi/schoolhost/pkg/server/middleware"
)

// registerJWTSteps registers the admin token steps
func (s *StepsContext) registerJWTSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I have no admin token$`, s.iHaveNoAdminToken)
	sc.Step(`^I have an admin token signed with "([^"]*)"$`, s.iHaveAnAdminTokenSignedWith)
	sc.Step(`^I have an expired admin token$`, s.iHaveAnExpiredAdminToken)
	sc.Step(`^the response error should be "([^"]*)"$`, s.theResponseErrorShouldBe)
}

func (s *StepsContext) iHaveNoAdminToken() error {
	s.adminToken = ""
	return nil
}

func (s *StepsContext) iHaveAnAdminTokenSignedWith(secret string) error {
	token, err := middleware.NewAdminAuthenticator(secret, nil).Issue("intruder@example.test", time.Hour)
	if err != nil {
		return err
	}
	s.adminToken = token
	return nil
}

func (s *StepsContext) iHaveAnExpiredAdminToken() error {
	past := clock.NewMock()
	past.Set(time.Now().Add(-2 * time.Hour))
	token, err := middleware.NewAdminAuthenticator(adminSecret, past).Issue("ops@platform.test", time.Minute)
	if err != nil {
		return err
	}
	s.adminToken = token
	return nil
}

func (s *StepsContext) theResponseErrorShouldBe(expected string) error {
	if s.response == nil {
		return fmt.Errorf("no response received")
	}
	if s.response.StatusCode < http.StatusBadRequest {
		return fmt.Errorf("expected an error response, got %d", s.response.StatusCode)
	}
	return s.theResponseFieldShouldBe("error", expected)
}
