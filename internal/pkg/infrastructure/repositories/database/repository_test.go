package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func TestCreateAndGetDevice(t *testing.T) {
	is, ctx, r := testSetup(t)
	createUser(is, ctx, r, "user-1")

	description := "my phone"
	battery := 80

	created, err := r.CreateDevice(ctx, Device{
		UserID:      "user-1",
		Name:        "Test",
		Description: &description,
		DeviceType:  "smartphone",
		Platform:    "Android",
		Battery:     &battery,
	})
	is.NoErr(err)
	is.True(created.ID > 0)
	is.Equal(created.Status, DeviceStatusOffline)

	fromDb, err := r.GetDevice(ctx, created.ID)
	is.NoErr(err)
	is.Equal(fromDb.Name, "Test")
	is.Equal(*fromDb.Description, "my phone")
	is.Equal(fromDb.DeviceType, "smartphone")
	is.Equal(fromDb.Platform, "Android")
	is.Equal(*fromDb.Battery, 80)
	is.Equal(fromDb.UserID, "user-1")
	is.True(fromDb.LastActivity == nil)
}

func TestGetDeviceThatDoesNotExist(t *testing.T) {
	is, ctx, r := testSetup(t)

	_, err := r.GetDevice(ctx, 4711)
	is.True(errors.Is(err, ErrNotFound))
}

func TestCreateDeviceForUnknownUserFails(t *testing.T) {
	is, ctx, r := testSetup(t)

	_, err := r.CreateDevice(ctx, Device{UserID: "nobody", Name: "n", DeviceType: "tablet", Platform: "iOS"})
	is.True(err != nil)
}

func TestGetDevicesOnlyReturnsDevicesOfUser(t *testing.T) {
	is, ctx, r := testSetup(t)
	createUser(is, ctx, r, "user-1")
	createUser(is, ctx, r, "user-2")

	createDevice(is, ctx, r, "user-1", "a")
	createDevice(is, ctx, r, "user-1", "b")
	createDevice(is, ctx, r, "user-2", "c")

	devices, err := r.GetDevices(ctx, "user-1")
	is.NoErr(err)
	is.Equal(len(devices), 2)

	devices, err = r.GetDevices(ctx, "user-3")
	is.NoErr(err)
	is.Equal(len(devices), 0)
}

func TestGetDevicesIsOrderedByLastActivity(t *testing.T) {
	is, ctx, r := testSetup(t)
	createUser(is, ctx, r, "user-1")

	older := time.Now().UTC().Add(-2 * time.Hour)
	newer := time.Now().UTC().Add(-1 * time.Hour)

	never := createDevice(is, ctx, r, "user-1", "never")
	_, err := r.CreateDevice(ctx, Device{UserID: "user-1", Name: "older", DeviceType: "laptop", Platform: "Linux", LastActivity: &older})
	is.NoErr(err)
	_, err = r.CreateDevice(ctx, Device{UserID: "user-1", Name: "newer", DeviceType: "laptop", Platform: "Linux", LastActivity: &newer})
	is.NoErr(err)

	devices, err := r.GetDevices(ctx, "user-1")
	is.NoErr(err)
	is.Equal(len(devices), 3)
	is.Equal(devices[0].Name, "newer")
	is.Equal(devices[1].Name, "older")
	is.Equal(devices[2].ID, never.ID)
}

func TestUpdateDevice(t *testing.T) {
	is, ctx, r := testSetup(t)
	createUser(is, ctx, r, "user-1")
	device := createDevice(is, ctx, r, "user-1", "before")

	time.Sleep(10 * time.Millisecond)

	updated, err := r.UpdateDevice(ctx, device.ID, map[string]any{
		"name":    "after",
		"status":  DeviceStatusOnline,
		"user_id": "user-2",
	})
	is.NoErr(err)
	is.Equal(updated.Name, "after")
	is.Equal(updated.Status, DeviceStatusOnline)
	is.Equal(updated.UserID, "user-1")
	is.Equal(updated.Platform, device.Platform)
	is.True(updated.UpdatedAt.After(device.UpdatedAt))
}

func TestUpdateDeviceWithoutFieldsRefreshesUpdatedAt(t *testing.T) {
	is, ctx, r := testSetup(t)
	createUser(is, ctx, r, "user-1")
	device := createDevice(is, ctx, r, "user-1", "device")

	time.Sleep(10 * time.Millisecond)

	updated, err := r.UpdateDevice(ctx, device.ID, map[string]any{})
	is.NoErr(err)
	is.True(updated.UpdatedAt.After(device.UpdatedAt))
}

func TestUpdateDeviceThatDoesNotExist(t *testing.T) {
	is, ctx, r := testSetup(t)

	_, err := r.UpdateDevice(ctx, 17, map[string]any{"name": "x"})
	is.True(errors.Is(err, ErrNotFound))
}

func TestDeleteDeviceRemovesDependentRows(t *testing.T) {
	is, ctx, r := testSetup(t)
	createUser(is, ctx, r, "user-1")
	device := createDevice(is, ctx, r, "user-1", "device")

	_, err := r.AddLocation(ctx, Location{DeviceID: device.ID, Latitude: "62.39", Longitude: "17.30"})
	is.NoErr(err)
	_, err = r.AddCall(ctx, Call{DeviceID: device.ID, PhoneNumber: "+4670123", CallType: "missed"})
	is.NoErr(err)
	_, err = r.CreateCommand(ctx, Command{DeviceID: device.ID, CommandType: "lock"})
	is.NoErr(err)

	err = r.DeleteDevice(ctx, device.ID)
	is.NoErr(err)

	_, err = r.GetDevice(ctx, device.ID)
	is.True(errors.Is(err, ErrNotFound))

	locations, err := r.GetLocations(ctx, device.ID)
	is.NoErr(err)
	is.Equal(len(locations), 0)

	calls, err := r.GetCalls(ctx, device.ID)
	is.NoErr(err)
	is.Equal(len(calls), 0)

	commands, err := r.GetCommandsByUser(ctx, "user-1")
	is.NoErr(err)
	is.Equal(len(commands), 0)

	err = r.DeleteDevice(ctx, device.ID)
	is.True(errors.Is(err, ErrNotFound))
}

func TestLimitReturnsPrefixOfNewestFirst(t *testing.T) {
	is, ctx, r := testSetup(t)
	createUser(is, ctx, r, "user-1")
	device := createDevice(is, ctx, r, "user-1", "device")

	start := time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := r.AddLocation(ctx, Location{
			DeviceID:  device.ID,
			Latitude:  fmt.Sprintf("62.%d", i),
			Longitude: "17.3",
			Timestamp: start.Add(time.Duration(i) * time.Minute),
		})
		is.NoErr(err)
	}

	all, err := r.GetLocations(ctx, device.ID)
	is.NoErr(err)
	is.Equal(len(all), 5)
	is.Equal(all[0].Latitude, "62.4")
	is.Equal(all[4].Latitude, "62.0")

	for n := 0; n <= 6; n++ {
		limited, err := r.GetLocations(ctx, device.ID, WithLimit(n))
		is.NoErr(err)
		is.True(len(limited) <= n)
		for i := range limited {
			is.Equal(limited[i].ID, all[i].ID)
		}
	}
}

func TestLocationsByDateRange(t *testing.T) {
	is, ctx, r := testSetup(t)
	createUser(is, ctx, r, "user-1")
	device := createDevice(is, ctx, r, "user-1", "device")

	start := time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 4; i >= 0; i-- {
		_, err := r.AddLocation(ctx, Location{
			DeviceID:  device.ID,
			Latitude:  fmt.Sprintf("62.%d", i),
			Longitude: "17.3",
			Timestamp: start.Add(time.Duration(i) * time.Hour),
		})
		is.NoErr(err)
	}

	locations, err := r.GetLocationsByDateRange(ctx, device.ID, start.Add(1*time.Hour), start.Add(3*time.Hour))
	is.NoErr(err)
	is.Equal(len(locations), 3)
	is.Equal(locations[0].Latitude, "62.1")
	is.Equal(locations[1].Latitude, "62.2")
	is.Equal(locations[2].Latitude, "62.3")

	empty, err := r.GetLocationsByDateRange(ctx, device.ID, start.Add(10*time.Hour), start.Add(11*time.Hour))
	is.NoErr(err)
	is.Equal(len(empty), 0)

	reversed, err := r.GetLocationsByDateRange(ctx, device.ID, start.Add(3*time.Hour), start)
	is.NoErr(err)
	is.Equal(len(reversed), 0)
}

func TestTelemetryTimestampDefaultsToNow(t *testing.T) {
	is, ctx, r := testSetup(t)
	createUser(is, ctx, r, "user-1")
	device := createDevice(is, ctx, r, "user-1", "device")

	before := time.Now().UTC().Add(-time.Second)

	photo, err := r.AddPhoto(ctx, Photo{DeviceID: device.ID, PhotoURL: "https://images/1.jpg"})
	is.NoErr(err)
	is.True(photo.Timestamp.After(before))

	_, err = r.AddRecording(ctx, Recording{DeviceID: device.ID, RecordingURL: "https://audio/1.mp3"})
	is.NoErr(err)
	_, err = r.AddMessage(ctx, Message{DeviceID: device.ID, PhoneNumber: "+4670123", MessageType: "incoming"})
	is.NoErr(err)

	photos, err := r.GetPhotos(ctx, device.ID)
	is.NoErr(err)
	is.Equal(len(photos), 1)

	recordings, err := r.GetRecordings(ctx, device.ID, WithLimit(10))
	is.NoErr(err)
	is.Equal(len(recordings), 1)

	messages, err := r.GetMessages(ctx, device.ID)
	is.NoErr(err)
	is.Equal(len(messages), 1)
}

func TestUpdateCommandStatusHappensOnce(t *testing.T) {
	is, ctx, r := testSetup(t)
	createUser(is, ctx, r, "user-1")
	device := createDevice(is, ctx, r, "user-1", "device")

	command, err := r.CreateCommand(ctx, Command{DeviceID: device.ID, CommandType: "alarm", Status: CommandStatusExecuted})
	is.NoErr(err)
	is.Equal(command.Status, CommandStatusPending)
	is.True(command.ExecutedAt == nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.UpdateCommandStatus(ctx, command.ID, CommandStatusExecuted, time.Now()); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	is.Equal(succeeded, 1)

	fromDb, err := r.GetCommand(ctx, command.ID)
	is.NoErr(err)
	is.Equal(fromDb.Status, CommandStatusExecuted)
	is.True(fromDb.ExecutedAt != nil)
	is.True(!fromDb.ExecutedAt.Before(fromDb.CreatedAt))

	_, err = r.UpdateCommandStatus(ctx, command.ID, CommandStatusFailed, time.Now())
	is.True(errors.Is(err, ErrCommandNotPending))

	_, err = r.UpdateCommandStatus(ctx, 999, CommandStatusExecuted, time.Now())
	is.True(errors.Is(err, ErrNotFound))
}

func TestFailedCommandHasNoExecutedAt(t *testing.T) {
	is, ctx, r := testSetup(t)
	createUser(is, ctx, r, "user-1")
	device := createDevice(is, ctx, r, "user-1", "device")

	command, err := r.CreateCommand(ctx, Command{DeviceID: device.ID, CommandType: "wipe"})
	is.NoErr(err)

	failed, err := r.UpdateCommandStatus(ctx, command.ID, CommandStatusFailed, time.Now())
	is.NoErr(err)
	is.Equal(failed.Status, CommandStatusFailed)
	is.True(failed.ExecutedAt == nil)
}

func TestGetCommandsByUser(t *testing.T) {
	is, ctx, r := testSetup(t)
	createUser(is, ctx, r, "user-1")
	createUser(is, ctx, r, "user-2")
	d1 := createDevice(is, ctx, r, "user-1", "one")
	d2 := createDevice(is, ctx, r, "user-1", "two")
	d3 := createDevice(is, ctx, r, "user-2", "three")

	start := time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, d := range []Device{d1, d2, d3, d1} {
		_, err := r.CreateCommand(ctx, Command{DeviceID: d.ID, CommandType: "lock", CreatedAt: start.Add(time.Duration(i) * time.Minute)})
		is.NoErr(err)
	}

	commands, err := r.GetCommandsByUser(ctx, "user-1")
	is.NoErr(err)
	is.Equal(len(commands), 3)
	is.Equal(commands[0].DeviceID, d1.ID)
	is.Equal(commands[1].DeviceID, d2.ID)

	commands, err = r.GetCommandsByUser(ctx, "user-1", WithLimit(1))
	is.NoErr(err)
	is.Equal(len(commands), 1)

	commands, err = r.GetCommands(ctx, d1.ID)
	is.NoErr(err)
	is.Equal(len(commands), 2)
	is.True(commands[0].CreatedAt.After(commands[1].CreatedAt))
}

func TestSettingsAreCreatedWithDefaults(t *testing.T) {
	is, ctx, r := testSetup(t)
	createUser(is, ctx, r, "user-1")

	_, err := r.GetSettings(ctx, "user-1")
	is.True(errors.Is(err, ErrNotFound))

	settings, err := r.CreateOrUpdateSettings(ctx, "user-1", SettingsUpdate{})
	is.NoErr(err)
	is.True(settings.ID > 0)
	is.Equal(settings.StealthMode, false)
	is.Equal(settings.NotificationsEnabled, true)
	is.Equal(settings.TrackingInterval, 15)
}

func TestSettingsUpdateMergesFields(t *testing.T) {
	is, ctx, r := testSetup(t)
	createUser(is, ctx, r, "user-1")

	interval := 30
	created, err := r.CreateOrUpdateSettings(ctx, "user-1", SettingsUpdate{TrackingInterval: &interval})
	is.NoErr(err)
	is.Equal(created.TrackingInterval, 30)
	is.Equal(created.NotificationsEnabled, true)

	time.Sleep(10 * time.Millisecond)

	stealth, off := true, false
	updated, err := r.CreateOrUpdateSettings(ctx, "user-1", SettingsUpdate{StealthMode: &stealth, NotificationsEnabled: &off})
	is.NoErr(err)
	is.Equal(updated.ID, created.ID)
	is.Equal(updated.StealthMode, true)
	is.Equal(updated.NotificationsEnabled, false)
	is.Equal(updated.TrackingInterval, 30)
	is.True(updated.UpdatedAt.After(created.UpdatedAt))
}

func TestUpsertUser(t *testing.T) {
	is, ctx, r := testSetup(t)

	email := "first@example.com"
	first, err := r.UpsertUser(ctx, User{ID: "user-1", Email: &email})
	is.NoErr(err)

	name := "Ada"
	email2 := "second@example.com"
	second, err := r.UpsertUser(ctx, User{ID: "user-1", Email: &email2, FirstName: &name})
	is.NoErr(err)

	is.Equal(*second.Email, "second@example.com")
	is.Equal(*second.FirstName, "Ada")
	is.True(second.CreatedAt.Equal(first.CreatedAt))
}

func TestGetDevicesLastActiveBefore(t *testing.T) {
	is, ctx, r := testSetup(t)
	createUser(is, ctx, r, "user-1")

	old := time.Now().UTC().Add(-2 * time.Hour)
	recent := time.Now().UTC()
	online := DeviceStatusOnline

	_, err := r.CreateDevice(ctx, Device{UserID: "user-1", Name: "old", DeviceType: "laptop", Platform: "Linux", Status: online, LastActivity: &old})
	is.NoErr(err)
	_, err = r.CreateDevice(ctx, Device{UserID: "user-1", Name: "recent", DeviceType: "laptop", Platform: "Linux", Status: online, LastActivity: &recent})
	is.NoErr(err)
	_, err = r.CreateDevice(ctx, Device{UserID: "user-1", Name: "offline", DeviceType: "laptop", Platform: "Linux", LastActivity: &old})
	is.NoErr(err)

	devices, err := r.GetDevicesLastActiveBefore(ctx, time.Now().Add(-time.Hour), DeviceStatusOnline, DeviceStatusIdle)
	is.NoErr(err)
	is.Equal(len(devices), 1)
	is.Equal(devices[0].Name, "old")
}

func TestSeed(t *testing.T) {
	is, ctx, r := testSetup(t)

	err := r.Seed(ctx, strings.NewReader(csvMock))
	is.NoErr(err)

	devices, err := r.GetDevices(ctx, "user-1")
	is.NoErr(err)
	is.Equal(len(devices), 2)

	devices, err = r.GetDevices(ctx, "user-2")
	is.NoErr(err)
	is.Equal(len(devices), 1)
	is.Equal(devices[0].Status, DeviceStatusOnline)
	is.Equal(*devices[0].Battery, 64)

	user, err := r.GetUser(ctx, "user-2")
	is.NoErr(err)
	is.Equal(*user.Email, "two@example.com")

	// seeding again does not duplicate devices
	err = r.Seed(ctx, strings.NewReader(csvMock))
	is.NoErr(err)

	devices, err = r.GetDevices(ctx, "user-1")
	is.NoErr(err)
	is.Equal(len(devices), 2)
}

func TestSeedWithInvalidStatus(t *testing.T) {
	is, ctx, r := testSetup(t)

	err := r.Seed(ctx, strings.NewReader("userId;email;name;description;deviceType;platform;status;battery\nuser-1;;phone;;smartphone;Android;broken;\n"))
	is.True(err != nil)
}

func testSetup(t *testing.T) (*is.I, context.Context, Repository) {
	is := is.New(t)
	ctx := context.Background()

	r, err := New(NewSQLiteConnector(zerolog.Logger{}))
	is.NoErr(err)

	return is, ctx, r
}

func createUser(is *is.I, ctx context.Context, r Repository, userID string) User {
	u, err := r.UpsertUser(ctx, User{ID: userID})
	is.NoErr(err)
	return u
}

func createDevice(is *is.I, ctx context.Context, r Repository, userID, name string) Device {
	d, err := r.CreateDevice(ctx, Device{
		UserID:     userID,
		Name:       name,
		DeviceType: "smartphone",
		Platform:   "Android",
	})
	is.NoErr(err)
	return d
}

const csvMock string = `userId;email;name;description;deviceType;platform;status;battery
user-1;one@example.com;Pixel;work phone;smartphone;Android;;
user-1;one@example.com;ThinkPad;;laptop;Linux;offline;90
user-2;two@example.com;iPad;kitchen;tablet;iPadOS;online;64
`
