package db

import (
	"testing"
	"time"

	"github.com/Linhcute123/biendongsodu/internal/testutils"
)

func createTestDB(t *testing.T) *Database {
	t.Helper()
	dbPath := testutils.CreateTestDBPath(t)
	database, err := NewDatabase(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestSettingsSeededOnFirstRun(t *testing.T) {
	database := createTestDB(t)

	settings, err := database.GetSettings()
	testutils.AssertNoError(t, err)

	testutils.AssertEqual(t, settings.PollInterval, 30)
	if settings.Threshold == nil || *settings.Threshold != 100000 {
		t.Errorf("default threshold: got %v, want 100000", settings.Threshold)
	}
	if settings.DefaultBotID != nil {
		t.Error("default bot must be unset on a fresh store")
	}
}

func TestUpdateSettings(t *testing.T) {
	database := createTestDB(t)

	settings := &Settings{
		PollInterval: 60,
		Threshold:    testutils.FloatPtr(50000),
		ChatID:       "-100123456",
	}
	testutils.AssertNoError(t, database.UpdateSettings(settings))

	got, err := database.GetSettings()
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, got.PollInterval, 60)
	testutils.AssertEqual(t, got.ChatID, "-100123456")
	testutils.AssertEqual(t, *got.Threshold, 50000.0)
}

func TestUpdateSettingsClampsInterval(t *testing.T) {
	database := createTestDB(t)

	settings := &Settings{PollInterval: 1, ChatID: "c"}
	testutils.AssertNoError(t, database.UpdateSettings(settings))

	got, err := database.GetSettings()
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, got.PollInterval, MinPollInterval)
}

func TestUpdateSettingsClearsThreshold(t *testing.T) {
	database := createTestDB(t)

	testutils.AssertNoError(t, database.UpdateSettings(&Settings{PollInterval: 30}))

	got, err := database.GetSettings()
	testutils.AssertNoError(t, err)
	if got.Threshold != nil {
		t.Errorf("threshold should be cleared, got %v", *got.Threshold)
	}
}

func TestBotCRUD(t *testing.T) {
	database := createTestDB(t)

	bot, err := database.InsertBot("main", "123:abc")
	testutils.AssertNoError(t, err)
	if bot.ID == 0 {
		t.Fatal("expected a non-zero bot id")
	}

	bots, err := database.GetBots()
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, len(bots), 1)
	testutils.AssertEqual(t, bots[0].Name, "main")
	testutils.AssertEqual(t, bots[0].Token, "123:abc")

	got, err := database.GetBotByID(bot.ID)
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, got.Name, "main")

	testutils.AssertNoError(t, database.DeleteBot(bot.ID))

	if _, err := database.GetBotByID(bot.ID); err != ErrNotFound {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if err := database.DeleteBot(bot.ID); err != ErrNotFound {
		t.Errorf("double delete: got %v, want ErrNotFound", err)
	}
}

func TestUpsertBotByName(t *testing.T) {
	database := createTestDB(t)

	testutils.AssertNoError(t, database.UpsertBotByName("alerts", "token1"))
	testutils.AssertNoError(t, database.UpsertBotByName("alerts", "token2"))

	bots, err := database.GetBots()
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, len(bots), 1)
	testutils.AssertEqual(t, bots[0].Token, "token2")
}

func TestSiteCRUD(t *testing.T) {
	database := createTestDB(t)

	site, err := database.InsertSite("shop", "https://example.com/api/balance", "data.balance")
	testutils.AssertNoError(t, err)

	if site.LastBalance != nil || site.LastChange != nil {
		t.Error("new endpoint must have no cached balance")
	}

	sites, err := database.GetSites()
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, len(sites), 1)
	testutils.AssertEqual(t, sites[0].BalanceField, "data.balance")

	testutils.AssertNoError(t, database.DeleteSite(site.ID))
	if err := database.DeleteSite(site.ID); err != ErrNotFound {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestUpdateSiteBalance(t *testing.T) {
	database := createTestDB(t)

	site, err := database.InsertSite("shop", "https://example.com/api", "")
	testutils.AssertNoError(t, err)

	ts := time.Now().Truncate(time.Second) // SQLite precision
	testutils.AssertNoError(t, database.UpdateSiteBalance(site.ID, 95000, ts))

	got, err := database.GetSiteByID(site.ID)
	testutils.AssertNoError(t, err)
	if got.LastBalance == nil || got.LastChange == nil {
		t.Fatal("balance and timestamp must be set together")
	}
	testutils.AssertEqual(t, *got.LastBalance, 95000.0)
	if !got.LastChange.Equal(ts) {
		t.Errorf("timestamp: got %v, want %v", got.LastChange, ts)
	}

	if err := database.UpdateSiteBalance(9999, 1, ts); err != ErrNotFound {
		t.Errorf("unknown endpoint: got %v, want ErrNotFound", err)
	}
}

func TestChangeLog(t *testing.T) {
	database := createTestDB(t)

	site, err := database.InsertSite("shop", "https://example.com/api", "")
	testutils.AssertNoError(t, err)

	base := time.Now().Truncate(time.Second)
	entries := []*ChangeEntry{
		{SiteID: site.ID, Kind: "deposit", Delta: 50000, Balance: 150000, Timestamp: base.Add(-2 * time.Hour)},
		{SiteID: site.ID, Kind: "payment", Delta: -405000, Balance: 95000, Timestamp: base.Add(-1 * time.Hour)},
	}
	for _, e := range entries {
		testutils.AssertNoError(t, database.InsertChangeEntry(e))
	}

	log, err := database.GetChangeLog(site.ID, 10)
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, len(log), 2)

	// Most recent first
	testutils.AssertEqual(t, log[0].Kind, "payment")
	testutils.AssertEqual(t, log[0].Delta, -405000.0)
	testutils.AssertEqual(t, log[1].Kind, "deposit")
}

func TestDeleteSiteRemovesChangeLog(t *testing.T) {
	database := createTestDB(t)

	site, err := database.InsertSite("shop", "https://example.com/api", "")
	testutils.AssertNoError(t, err)
	testutils.AssertNoError(t, database.InsertChangeEntry(&ChangeEntry{
		SiteID: site.ID, Kind: "deposit", Delta: 1, Balance: 1, Timestamp: time.Now(),
	}))

	testutils.AssertNoError(t, database.DeleteSite(site.ID))

	log, err := database.GetChangeLog(site.ID, 10)
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, len(log), 0)
}

func TestRestoreSite(t *testing.T) {
	database := createTestDB(t)

	ts := time.Now().Truncate(time.Second)
	site := &Site{
		Name:         "shop",
		URL:          "https://example.com/api",
		BalanceField: "sodu",
		LastBalance:  testutils.FloatPtr(500000),
		LastChange:   &ts,
	}
	testutils.AssertNoError(t, database.RestoreSite(site))

	// Same name updates in place instead of duplicating
	site.URL = "https://example.com/api/v2"
	testutils.AssertNoError(t, database.RestoreSite(site))

	sites, err := database.GetSites()
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, len(sites), 1)
	testutils.AssertEqual(t, sites[0].URL, "https://example.com/api/v2")
	testutils.AssertEqual(t, *sites[0].LastBalance, 500000.0)
}

func TestWipe(t *testing.T) {
	database := createTestDB(t)

	_, err := database.InsertBot("main", "t")
	testutils.AssertNoError(t, err)
	site, err := database.InsertSite("shop", "https://example.com/api", "")
	testutils.AssertNoError(t, err)
	testutils.AssertNoError(t, database.InsertChangeEntry(&ChangeEntry{
		SiteID: site.ID, Kind: "deposit", Delta: 1, Balance: 1, Timestamp: time.Now(),
	}))

	testutils.AssertNoError(t, database.Wipe())

	bots, err := database.GetBots()
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, len(bots), 0)

	sites, err := database.GetSites()
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, len(sites), 0)

	// Settings survive a wipe
	settings, err := database.GetSettings()
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, settings.PollInterval, 30)
}
