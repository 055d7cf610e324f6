package integration

import (
	"context"
	"os"
	"testing"

	"github.com/cucumber/godog"
)

// TestFeatures runs the provisioning, migration, quota, resolution and
// admin auth features against a postgres container. SCHOOLHOST_FEATURE_TAGS
// narrows the run, e.g. "@quota && ~@slow".
func TestFeatures(t *testing.T) {
	if os.Getenv("SCHOOLHOST_INTEGRATION") == "" {
		t.Skip("set SCHOOLHOST_INTEGRATION=1 to run the feature suite")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tc, err := NewTestContext(ctx)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	defer tc.Close(ctx)

	format := os.Getenv("SCHOOLHOST_FEATURE_FORMAT")
	if format == "" {
		format = "progress"
	}

	suite := godog.TestSuite{
		Name: "schoolhost",
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			NewStepsContext(tc).RegisterSteps(sc)
		},
		Options: &godog.Options{
			Format:   format,
			Paths:    []string{"features"},
			Tags:     os.Getenv("SCHOOLHOST_FEATURE_TAGS"),
			Strict:   true,
			TestingT: t,
		},
	}

	if status := suite.Run(); status != 0 {
		t.Fatalf("feature suite exited with status %d", status)
	}
}
