package config

import (
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DatabaseConfig", func() {
	Describe("DefaultDatabaseConfig", func() {
		It("should return correct default values", func() {
			cfg := DefaultDatabaseConfig()

			Expect(cfg.Host).To(Equal("localhost"))
			Expect(cfg.Port).To(Equal(5432))
			Expect(cfg.User).To(Equal("pilot_user"))
			Expect(cfg.Database).To(Equal("pilot_core"))
			Expect(cfg.SSLMode).To(Equal("disable"))
			Expect(cfg.MaxOpenConns).To(Equal(25))
			Expect(cfg.MaxIdleConns).To(Equal(5))
			Expect(cfg.ConnMaxLifetime).To(Equal(5 * time.Minute))
		})
	})

	Describe("LoadFromEnv", func() {
		var cfg *DatabaseConfig

		BeforeEach(func() {
			cfg = DefaultDatabaseConfig()
			os.Unsetenv("DB_HOST")
			os.Unsetenv("DB_PORT")
			os.Unsetenv("DB_USER")
			os.Unsetenv("DB_PASSWORD")
			os.Unsetenv("DB_NAME")
			os.Unsetenv("DB_SSL_MODE")
		})

		Context("when environment variables are set", func() {
			BeforeEach(func() {
				os.Setenv("DB_HOST", "testhost")
				os.Setenv("DB_PORT", "6543")
				os.Setenv("DB_USER", "testuser")
				os.Setenv("DB_NAME", "testdb")
			})

			AfterEach(func() {
				os.Unsetenv("DB_HOST")
				os.Unsetenv("DB_PORT")
				os.Unsetenv("DB_USER")
				os.Unsetenv("DB_NAME")
			})

			It("should load values from environment", func() {
				cfg.LoadFromEnv()

				Expect(cfg.Host).To(Equal("testhost"))
				Expect(cfg.Port).To(Equal(6543))
				Expect(cfg.User).To(Equal("testuser"))
				Expect(cfg.Database).To(Equal("testdb"))
			})
		})

		Context("when DB_PORT is not a number", func() {
			BeforeEach(func() {
				os.Setenv("DB_PORT", "not-a-port")
			})

			AfterEach(func() {
				os.Unsetenv("DB_PORT")
			})

			It("should keep the default port", func() {
				originalPort := cfg.Port
				cfg.LoadFromEnv()
				Expect(cfg.Port).To(Equal(originalPort))
			})
		})
	})

	Describe("Validate", func() {
		var cfg *DatabaseConfig

		BeforeEach(func() {
			cfg = DefaultDatabaseConfig()
		})

		It("passes for the default config", func() {
			Expect(cfg.Validate()).NotTo(HaveOccurred())
		})

		It("rejects an empty host", func() {
			cfg.Host = ""
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("database host is required")))
		})

		It("rejects an out-of-range port", func() {
			cfg.Port = 99999
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("database port must be between 1 and 65535")))
		})

		It("rejects zero max open connections", func() {
			cfg.MaxOpenConns = 0
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("max open connections must be greater than 0")))
		})
	})

	Describe("ConnectionString", func() {
		It("omits the password when not set", func() {
			cfg := &DatabaseConfig{Host: "localhost", Port: 5432, User: "u", Database: "d", SSLMode: "disable"}
			Expect(cfg.ConnectionString()).To(Equal("host=localhost port=5432 user=u dbname=d sslmode=disable"))
		})

		It("includes the password when set", func() {
			cfg := &DatabaseConfig{Host: "localhost", Port: 5432, User: "u", Database: "d", SSLMode: "disable", Password: "secret"}
			Expect(cfg.ConnectionString()).To(ContainSubstring("password=secret"))
		})
	})
})

var _ = Describe("Load", func() {
	BeforeEach(func() {
		os.Unsetenv("LLM_ROUTER_MODE")
		os.Unsetenv("LLM_HEDGED_TIMEOUT_MS")
		os.Unsetenv("DB_HOST")
	})

	It("resolves sensible defaults with no environment set", func() {
		cfg, err := Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.RouterMode).To(Equal(RouterModeHedged))
		Expect(cfg.HedgedTimeout).To(Equal(8 * time.Second))
		Expect(cfg.TotalBudget).To(Equal(180 * time.Second))
	})

	It("honors LLM_ROUTER_MODE and LLM_HEDGED_TIMEOUT_MS overrides", func() {
		os.Setenv("LLM_ROUTER_MODE", "single")
		os.Setenv("LLM_HEDGED_TIMEOUT_MS", "5000")
		defer os.Unsetenv("LLM_ROUTER_MODE")
		defer os.Unsetenv("LLM_HEDGED_TIMEOUT_MS")

		cfg, err := Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.RouterMode).To(Equal(RouterMode("single")))
		Expect(cfg.HedgedTimeout).To(Equal(5 * time.Second))
	})

	It("rejects an invalid database host via Database.Validate", func() {
		os.Setenv("DB_HOST", "")
		os.Setenv("DB_USER", "")
		defer os.Unsetenv("DB_USER")
		// DB_HOST empty string still unsets nothing since LoadFromEnv only
		// overwrites when the env var is non-empty; force via direct field.
		cfg, err := Load()
		Expect(err).NotTo(HaveOccurred())
		cfg.Database.Host = ""
		Expect(cfg.Database.Validate()).To(HaveOccurred())
	})
})
