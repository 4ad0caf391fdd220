package provider

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/hashicorp/terraform-plugin-testing/helper/resource"
	"github.com/hashicorp/terraform-plugin-testing/terraform"
	"github.com/spf13/afero"

	"github.com/isometry/terraform-provider-sambadc/internal/provision"
	"github.com/isometry/terraform-provider-sambadc/internal/smbconf"
)

// Test environment configuration constants.
const (
	// Environment variables for test configuration.
	EnvTestDisposableHost = "SAMBADC_TEST_DISPOSABLE_HOST"
	EnvTestRealm          = "SAMBADC_TEST_REALM"
	EnvTestWorkgroup      = "SAMBADC_TEST_WORKGROUP"
	EnvTestAdminPassword  = "SAMBADC_TEST_ADMIN_PASSWORD"
	EnvTestLDAPURL        = "SAMBADC_TEST_LDAP_URL"
	EnvTestDNSBackend     = "SAMBADC_TEST_DNS_BACKEND"

	// Default values for testing.
	DefaultTestRealm      = "SAMDOM.EXAMPLE.COM"
	DefaultTestDNSBackend = "SAMBA_INTERNAL"
)

// TestConfig holds common test configuration.
type TestConfig struct {
	Realm         string
	Workgroup     string
	AdminPassword string
	LDAPURL       string
	DNSBackend    string
}

// GetTestConfig returns the test configuration from environment variables.
func GetTestConfig() *TestConfig {
	return &TestConfig{
		Realm:         getEnvWithDefault(EnvTestRealm, DefaultTestRealm),
		Workgroup:     os.Getenv(EnvTestWorkgroup),
		AdminPassword: os.Getenv(EnvTestAdminPassword),
		LDAPURL:       os.Getenv(EnvTestLDAPURL),
		DNSBackend:    getEnvWithDefault(EnvTestDNSBackend, DefaultTestDNSBackend),
	}
}

// IsAccTest returns true if acceptance tests should run.
func IsAccTest() bool {
	return os.Getenv("TF_ACC") != ""
}

// SkipIfNotAccTest skips the test if TF_ACC is not set.
func SkipIfNotAccTest(t *testing.T) {
	if !IsAccTest() {
		t.Skip("Skipping acceptance test - set TF_ACC=1 to run")
	}
}

// testAccPreCheckWithConfig skips unless the test may turn this host into a
// domain controller.
func testAccPreCheckWithConfig(t *testing.T) *TestConfig {
	SkipIfNotAccTest(t)

	if os.Getenv(EnvTestDisposableHost) == "" {
		t.Skipf("Skipping test: provisioning rewrites system configuration; set %s=1 on a disposable host", EnvTestDisposableHost)
	}

	config := GetTestConfig()

	if config.AdminPassword == "" {
		t.Skipf("Skipping test: %s must be set", EnvTestAdminPassword)
	}

	return config
}

// TestProviderConfig generates provider configuration for tests. Paths are
// left to their defaults so the run acts on the real system files.
func TestProviderConfig() string {
	return "provider \"sambadc\" {}\n"
}

// GenerateNewForestConfig generates a new-forest resource configuration.
func (c *TestConfig) GenerateNewForestConfig() string {
	var b strings.Builder
	b.WriteString(TestProviderConfig())
	b.WriteString("\nresource \"sambadc_domain_controller\" \"test\" {\n")
	b.WriteString(fmt.Sprintf("  realm          = %q\n", c.Realm))
	if c.Workgroup != "" {
		b.WriteString(fmt.Sprintf("  workgroup      = %q\n", c.Workgroup))
	}
	b.WriteString(fmt.Sprintf("  admin_password = %q\n", c.AdminPassword))
	b.WriteString(fmt.Sprintf("  dns_backend    = %q\n", c.DNSBackend))
	b.WriteString("  dns_managed    = false\n")
	b.WriteString("}\n")
	return b.String()
}

// TestCheckDomainControllerExists verifies that smb.conf describes an AD DC
// for the realm of the resource.
func TestCheckDomainControllerExists(resourceName string) resource.TestCheckFunc {
	return func(s *terraform.State) error {
		rs, ok := s.RootModule().Resources[resourceName]
		if !ok {
			return fmt.Errorf("resource not found: %s", resourceName)
		}

		if rs.Primary.ID == "" {
			return fmt.Errorf("resource ID not set")
		}

		config, err := smbconf.Load(afero.NewOsFs(), provision.DefaultPaths().SMBConf)
		if err != nil {
			return err
		}

		if !config.IsDomainController() {
			return fmt.Errorf("%s does not describe a domain controller", config.Path())
		}

		if want := rs.Primary.Attributes["realm"]; !strings.EqualFold(config.Realm(), want) {
			return fmt.Errorf("realm is %q, expected %q", config.Realm(), want)
		}

		return nil
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
