package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"gorm.io/gorm"

	"github.com/doodlesbykumbi/schoolhost/pkg/server/middleware"
)

// StepsContext holds state shared between step definitions
type StepsContext struct {
	tc           *TestContext
	response     *http.Response
	responseBody []byte
	adminToken   string
	// tenants maps slugs to registry ids
	tenants map[string]int64
}

// NewStepsContext creates a new steps context
func NewStepsContext(tc *TestContext) *StepsContext {
	return &StepsContext{
		tc:      tc,
		tenants: make(map[string]int64),
	}
}

// RegisterSteps registers all step definitions
func (s *StepsContext) RegisterSteps(sc *godog.ScenarioContext) {
	// Background steps
	sc.Step(`^the platform is running$`, s.thePlatformIsRunning)
	sc.Step(`^a pending tenant "([^"]*)" on plan "([^"]*)"$`, s.aPendingTenantOnPlan)
	sc.Step(`^I am a platform admin$`, s.iAmAPlatformAdmin)

	// Lifecycle steps
	sc.Step(`^I provision tenant "([^"]*)" with admin "([^"]*)"$`, s.iProvisionTenantWithAdmin)
	sc.Step(`^tenant "([^"]*)" is provisioned$`, s.tenantIsProvisioned)
	sc.Step(`^I migrate tenant "([^"]*)"$`, s.iMigrateTenant)
	sc.Step(`^I migrate all tenants$`, s.iMigrateAllTenants)
	sc.Step(`^tenant "([^"]*)" is marked "([^"]*)"$`, s.tenantIsMarked)
	sc.Step(`^I drop the database of tenant "([^"]*)"$`, s.iDropTheDatabaseOfTenant)
	sc.Step(`^the table "([^"]*)" is dropped from tenant "([^"]*)"$`, s.theTableIsDroppedFromTenant)

	// Quota and rate limit steps
	sc.Step(`^I add (-?\d+) bytes of "([^"]*)" usage to tenant "([^"]*)"$`, s.iAddUsageToTenant)
	sc.Step(`^I check the "([^"]*)" quota of tenant "([^"]*)"$`, s.iCheckTheQuotaOfTenant)
	sc.Step(`^I request "([^"]*)" on host "([^"]*)"$`, s.iRequestOnHost)

	// Response steps
	sc.Step(`^the response status should be (\d+)$`, s.theResponseStatusShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, s.theResponseFieldShouldBe)

	// Registry and tenant database assertions
	sc.Step(`^tenant "([^"]*)" should have status "([^"]*)"$`, s.tenantShouldHaveStatus)
	sc.Step(`^tenant "([^"]*)" should be at the current schema version$`, s.tenantShouldBeAtCurrentVersion)
	sc.Step(`^the database of tenant "([^"]*)" should contain table "([^"]*)"$`, s.theDatabaseShouldContainTable)
	sc.Step(`^the database of tenant "([^"]*)" should have (\d+) user with role "([^"]*)"$`, s.theDatabaseShouldHaveUsers)
	sc.Step(`^the database of tenant "([^"]*)" should not exist$`, s.theDatabaseShouldNotExist)

	s.registerJWTSteps(sc)
}

// Background steps

func (s *StepsContext) thePlatformIsRunning() error {
	return nil
}

func (s *StepsContext) aPendingTenantOnPlan(slug, planCode string) error {
	// Scenarios share one registry; suffix the slug so each run is fresh.
	unique := fmt.Sprintf("%s-%d", slug, time.Now().UnixNano())
	var id int64
	err := s.tc.DB.Raw(`
		INSERT INTO tenants (slug, name, status, plan_id)
		SELECT ?, ?, 'pending', id FROM subscription_plans WHERE code = ?
		RETURNING id
	`, unique, strings.ToUpper(slug[:1])+slug[1:], planCode).Scan(&id).Error
	if err != nil {
		return err
	}
	if id == 0 {
		return fmt.Errorf("plan %q does not exist", planCode)
	}
	s.tenants[slug] = id
	return nil
}

func (s *StepsContext) iAmAPlatformAdmin() error {
	token, err := middleware.NewAdminAuthenticator(adminSecret, nil).Issue("ops@platform.test", time.Hour)
	if err != nil {
		return err
	}
	s.adminToken = token
	return nil
}

// Lifecycle steps

func (s *StepsContext) tenantID(slug string) (int64, error) {
	id, ok := s.tenants[slug]
	if !ok {
		return 0, fmt.Errorf("unknown tenant %q", slug)
	}
	return id, nil
}

func (s *StepsContext) iProvisionTenantWithAdmin(slug, email string) error {
	id, err := s.tenantID(slug)
	if err != nil {
		return err
	}
	body := map[string]string{
		"name":     "School Admin",
		"email":    email,
		"phone":    "+15550100",
		"password": "correct-horse-battery",
	}
	return s.adminRequest("POST", fmt.Sprintf("/tenants/%d/provision", id), body)
}

func (s *StepsContext) tenantIsProvisioned(slug string) error {
	if err := s.iProvisionTenantWithAdmin(slug, "admin@"+slug+".test"); err != nil {
		return err
	}
	return s.theResponseStatusShouldBe(http.StatusCreated)
}

func (s *StepsContext) iMigrateTenant(slug string) error {
	id, err := s.tenantID(slug)
	if err != nil {
		return err
	}
	return s.adminRequest("POST", fmt.Sprintf("/tenants/%d/migrate", id), nil)
}

func (s *StepsContext) iMigrateAllTenants() error {
	return s.adminRequest("POST", "/tenants/migrate", nil)
}

func (s *StepsContext) tenantIsMarked(slug, status string) error {
	id, err := s.tenantID(slug)
	if err != nil {
		return err
	}
	return s.tc.DB.Exec(`UPDATE tenants SET status = ? WHERE id = ?`, status, id).Error
}

func (s *StepsContext) iDropTheDatabaseOfTenant(slug string) error {
	id, err := s.tenantID(slug)
	if err != nil {
		return err
	}
	return s.adminRequest("DELETE", fmt.Sprintf("/tenants/%d/database", id), nil)
}

func (s *StepsContext) theTableIsDroppedFromTenant(table, slug string) error {
	tdb, closeDB, err := s.tenantDB(slug)
	if err != nil {
		return err
	}
	defer closeDB()
	return tdb.Exec(fmt.Sprintf(`DROP TABLE %q CASCADE`, table)).Error
}

// Quota and rate limit steps

func (s *StepsContext) iAddUsageToTenant(delta int64, category, slug string) error {
	id, err := s.tenantID(slug)
	if err != nil {
		return err
	}
	return s.adminRequest("POST", fmt.Sprintf("/tenants/%d/quota/%s", id, category), map[string]int64{"delta": delta})
}

func (s *StepsContext) iCheckTheQuotaOfTenant(category, slug string) error {
	id, err := s.tenantID(slug)
	if err != nil {
		return err
	}
	return s.adminRequest("GET", fmt.Sprintf("/tenants/%d/quota/%s", id, category), nil)
}

func (s *StepsContext) iRequestOnHost(path, host string) error {
	var slug string
	if label, _, ok := strings.Cut(host, "."); ok {
		slug = label
	}
	// Replace the scenario slug with the unique registry slug.
	var unique string
	if id, ok := s.tenants[slug]; ok {
		if err := s.tc.DB.Raw(`SELECT slug FROM tenants WHERE id = ?`, id).Scan(&unique).Error; err != nil {
			return err
		}
		host = unique + strings.TrimPrefix(host, slug)
	}

	req, err := http.NewRequest("GET", s.tc.Server.URL+path, nil)
	if err != nil {
		return err
	}
	req.Host = host
	return s.do(req)
}

// Response steps

func (s *StepsContext) theResponseStatusShouldBe(expected int) error {
	if s.response == nil {
		return fmt.Errorf("no response received")
	}
	if s.response.StatusCode != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, s.response.StatusCode, string(s.responseBody))
	}
	return nil
}

func (s *StepsContext) theResponseFieldShouldBe(field, expected string) error {
	var body map[string]interface{}
	if err := json.Unmarshal(s.responseBody, &body); err != nil {
		return fmt.Errorf("response is not a JSON object: %w", err)
	}
	var current interface{} = body
	for _, part := range strings.Split(field, ".") {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return fmt.Errorf("field %q not found in %s", field, string(s.responseBody))
		}
		current = obj[part]
	}
	got := fmt.Sprint(current)
	if n, ok := current.(float64); ok {
		got = strconv.FormatFloat(n, 'f', -1, 64)
	}
	if got != expected {
		return fmt.Errorf("expected %s to be %q, got %q", field, expected, got)
	}
	return nil
}

// Registry and tenant database assertions

func (s *StepsContext) tenantShouldHaveStatus(slug, expected string) error {
	id, err := s.tenantID(slug)
	if err != nil {
		return err
	}
	var status string
	if err := s.tc.DB.Raw(`SELECT status FROM tenants WHERE id = ?`, id).Scan(&status).Error; err != nil {
		return err
	}
	if status != expected {
		return fmt.Errorf("expected tenant %s to be %q, got %q", slug, expected, status)
	}
	return nil
}

func (s *StepsContext) tenantShouldBeAtCurrentVersion(slug string) error {
	id, err := s.tenantID(slug)
	if err != nil {
		return err
	}
	var row struct {
		MigrationVersion int
		MigratedAt       *time.Time
	}
	if err := s.tc.DB.Raw(`SELECT migration_version, migrated_at FROM tenants WHERE id = ?`, id).Scan(&row).Error; err != nil {
		return err
	}
	if row.MigrationVersion == 0 || row.MigratedAt == nil {
		return fmt.Errorf("tenant %s was never stamped", slug)
	}
	return nil
}

func (s *StepsContext) theDatabaseShouldContainTable(slug, table string) error {
	tdb, closeDB, err := s.tenantDB(slug)
	if err != nil {
		return err
	}
	defer closeDB()

	var n int64
	err = tdb.Raw(`SELECT count(*) FROM information_schema.tables WHERE table_schema = 'public' AND table_name = ?`, table).Scan(&n).Error
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("table %q missing from tenant %s", table, slug)
	}
	return nil
}

func (s *StepsContext) theDatabaseShouldHaveUsers(slug string, expected int, role string) error {
	tdb, closeDB, err := s.tenantDB(slug)
	if err != nil {
		return err
	}
	defer closeDB()

	var n int
	err = tdb.Raw(`SELECT count(*) FROM users u JOIN roles r ON r.id = u.role_id WHERE r.name = ?`, role).Scan(&n).Error
	if err != nil {
		return err
	}
	if n != expected {
		return fmt.Errorf("expected %d %s users, got %d", expected, role, n)
	}
	return nil
}

func (s *StepsContext) theDatabaseShouldNotExist(slug string) error {
	id, err := s.tenantID(slug)
	if err != nil {
		return err
	}
	var n int64
	err = s.tc.DB.Raw(`
		SELECT count(*) FROM pg_database d JOIN tenants t ON t.database_name = d.datname WHERE t.id = ?
	`, id).Scan(&n).Error
	if err != nil {
		return err
	}
	if n != 0 {
		return fmt.Errorf("database of tenant %s still exists", slug)
	}
	return nil
}

// Helpers

func (s *StepsContext) tenantDB(slug string) (*gorm.DB, func(), error) {
	id, err := s.tenantID(slug)
	if err != nil {
		return nil, nil, err
	}
	var row struct {
		DatabaseName *string
	}
	if err := s.tc.DB.Raw(`SELECT database_name FROM tenants WHERE id = ?`, id).Scan(&row).Error; err != nil {
		return nil, nil, err
	}
	if row.DatabaseName == nil {
		return nil, nil, fmt.Errorf("tenant %s has no database", slug)
	}
	tdb, err := s.tc.TenantDB(*row.DatabaseName)
	if err != nil {
		return nil, nil, err
	}
	return tdb, func() {
		if sqlDB, err := tdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}, nil
}

func (s *StepsContext) adminRequest(method, path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.tc.Server.URL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.adminToken)
	}
	return s.do(req)
}

func (s *StepsContext) do(req *http.Request) error {
	resp, err := s.tc.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	s.response = resp
	s.responseBody, err = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return err
}
