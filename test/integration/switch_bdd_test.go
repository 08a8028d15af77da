//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/ccswitch/internal/daemon"
	"github.com/eliteGoblin/ccswitch/internal/domain"
	"github.com/eliteGoblin/ccswitch/internal/infra"
	"github.com/eliteGoblin/ccswitch/internal/usecase"
	"github.com/eliteGoblin/ccswitch/test/fixtures"
)

func parseJSON(content string) map[string]any {
	var obj map[string]any
	Expect(json.Unmarshal([]byte(content), &obj)).To(Succeed())
	return obj
}

var _ = Describe("Profile switching", func() {
	var (
		tmpDir  string
		claude  *fixtures.FakeClaudeDir
		dataDir string
		journal *infra.Journal
		store   *usecase.ProfileStore
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "ccswitch-integration-*")
		Expect(err).NotTo(HaveOccurred())

		claude = fixtures.NewFakeClaudeDir(filepath.Join(tmpDir, ".claude"))
		Expect(claude.Create(`{"theme":"dark","model":"m1"}`, map[string]string{
			"work": `{"theme":"dark","model":"m2"}`,
			"home": `{"theme":"light"}`,
		})).To(Succeed())

		dataDir = filepath.Join(tmpDir, "data")
		journal, err = infra.OpenJournalWithKey(dataDir, infra.NewJournalKey(dataDir))
		Expect(err).NotTo(HaveOccurred())

		fsys := infra.NewFileSystem()
		store, err = usecase.NewProfileStore(usecase.DefaultStoreConfig(claude.Dir), usecase.StoreDeps{
			FS:      fsys,
			Backups: infra.NewBackupManager(fsys, claude.LivePath(), zap.NewNop()),
			Journal: journal,
			Logger:  zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
		_, err = store.Scan()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if journal != nil {
			journal.Close()
		}
		os.RemoveAll(tmpDir)
	})

	Describe("Detecting the Claude directory", func() {
		It("should find the directory through CLAUDE_CONFIG_DIR", func() {
			env := map[string]string{infra.ClaudeDirEnvVar: claude.Dir}
			detector := infra.NewDetectorWithHome(filepath.Join(tmpDir, "nohome"), func(k string) string { return env[k] })

			dir, err := detector.Detect("")
			Expect(err).NotTo(HaveOccurred())
			Expect(dir).To(Equal(claude.Dir))
		})
	})

	Describe("Switch", func() {
		Context("when a profile differs only in model", func() {
			It("should report a partial match, then a full match after switching", func() {
				Expect(store.StatusOf("work")).To(Equal(domain.PartialMatch))
				Expect(store.StatusOf("home")).To(Equal(domain.NoMatch))

				Expect(store.Switch("work")).To(Succeed())

				live, err := claude.ReadLive()
				Expect(err).NotTo(HaveOccurred())
				Expect(parseJSON(live)).To(Equal(map[string]any{"theme": "dark", "model": "m2"}))
				Expect(store.StatusOf("work")).To(Equal(domain.FullMatch))

				backups, err := claude.Backups()
				Expect(err).NotTo(HaveOccurred())
				Expect(backups).To(HaveLen(1))

				temps, err := claude.LeftoverTemps()
				Expect(err).NotTo(HaveOccurred())
				Expect(temps).To(BeEmpty())
			})

			It("should journal the committed switch in the encrypted database", func() {
				Expect(store.Switch("work")).To(Succeed())

				records, err := journal.Recent(10)
				Expect(err).NotTo(HaveOccurred())
				Expect(records).To(HaveLen(1))
				Expect(records[0].Profile).To(Equal("work"))
				Expect(records[0].Outcome).To(Equal(domain.OutcomeCommitted))
				Expect(records[0].Checksum).NotTo(BeZero())
			})
		})

		Context("when the profile does not exist", func() {
			It("should return NotFound and leave the live file byte-identical", func() {
				before, err := claude.ReadLive()
				Expect(err).NotTo(HaveOccurred())

				err = store.Switch("ghost")
				Expect(err).To(MatchError(domain.ErrNotFound))

				after, err := claude.ReadLive()
				Expect(err).NotTo(HaveOccurred())
				Expect(after).To(Equal(before))

				backups, err := claude.Backups()
				Expect(err).NotTo(HaveOccurred())
				Expect(backups).To(BeEmpty())
			})
		})

		Context("when switching back and forth", func() {
			It("should restore the previous live settings from a backup", func() {
				Expect(store.Switch("home")).To(Succeed())
				Expect(store.StatusOf("home")).To(Equal(domain.FullMatch))

				backups, err := store.Backups()
				Expect(err).NotTo(HaveOccurred())
				Expect(backups).NotTo(BeEmpty())

				Expect(store.RestoreBackup(backups[0].Name)).To(Succeed())

				live, err := claude.ReadLive()
				Expect(err).NotTo(HaveOccurred())
				Expect(parseJSON(live)).To(Equal(map[string]any{"theme": "dark", "model": "m1"}))
				Expect(store.StatusOf("work")).To(Equal(domain.PartialMatch))
			})
		})

		Context("when the Claude directory is read-only", func() {
			It("should fail without touching the live file", func() {
				if os.Geteuid() == 0 {
					Skip("root ignores directory permissions")
				}
				before, err := claude.ReadLive()
				Expect(err).NotTo(HaveOccurred())

				Expect(os.Chmod(claude.Dir, 0555)).To(Succeed())
				defer os.Chmod(claude.Dir, 0755)

				err = store.Switch("home")
				Expect(err).To(MatchError(domain.ErrFileSystem))

				after, err := claude.ReadLive()
				Expect(err).NotTo(HaveOccurred())
				Expect(after).To(Equal(before))
			})
		})
	})

	Describe("Watch daemon", func() {
		It("should refresh status when the live settings are edited externally", func() {
			fsys := infra.NewFileSystem()
			cfg := daemon.DefaultMonitorConfig()
			cfg.Interval = 20 * time.Millisecond
			monitor := daemon.NewMonitor(cfg, fsys, infra.NewProber(fsys), zap.NewNop())

			pm := infra.NewProcessManager()
			registry := infra.NewFileRegistry(dataDir, pm)
			service := daemon.NewService(daemon.DefaultServiceConfig(), store, monitor, registry, pm, zap.NewNop())

			refreshed := make(chan []domain.ProfileStatus, 4)
			service.OnRefresh = func(st []domain.ProfileStatus) {
				select {
				case refreshed <- st:
				default:
				}
			}

			ctx, cancel := context.WithCancel(context.Background())
			errCh := make(chan error, 1)
			go func() { errCh <- service.Run(ctx) }()

			Eventually(monitor.IsRunning).Should(BeTrue())
			alive, err := registry.IsAlive()
			Expect(err).NotTo(HaveOccurred())
			Expect(alive).To(BeTrue())

			Expect(claude.WriteLive(`{"theme":"light"}`)).To(Succeed())

			var statuses []domain.ProfileStatus
			Eventually(refreshed, 5*time.Second).Should(Receive(&statuses))
			Expect(statuses).To(ContainElement(domain.ProfileStatus{Name: "home", Status: domain.FullMatch}))
			Expect(store.StatusOf("home")).To(Equal(domain.FullMatch))

			cancel()
			Eventually(errCh, 5*time.Second).Should(Receive(MatchError(context.Canceled)))

			state, err := registry.Get()
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})
	})
})
