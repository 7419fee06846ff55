package commands

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/murmur/internal/client"
	"github.com/wolfeidau/murmur/internal/config"
	"github.com/wolfeidau/murmur/internal/models"
)

func TestLoginLogout_RoundTrip(t *testing.T) {
	for _, driver := range []string{config.DriverFile, config.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			f := newFixture(t, driver)

			out := f.mustRun(t, &WhoamiCmd{})
			assert.Equal(t, "Not logged in.\n", out)

			out = f.mustRun(t, &LoginCmd{Username: "alice", Password: "alice-pw"})
			assert.Equal(t, "Logged in as alice\n", out)

			// each command opens a fresh session from the persisted token
			out = f.mustRun(t, &WhoamiCmd{})
			assert.Contains(t, out, "alice (id ")
			assert.Contains(t, out, "alice@example.com")
			assert.Contains(t, out, f.srv.URL())

			out = f.mustRun(t, &LogoutCmd{})
			assert.Equal(t, "Logged out.\n", out)

			out = f.mustRun(t, &WhoamiCmd{})
			assert.Equal(t, "Not logged in.\n", out)
		})
	}
}

func TestLogin_PersistsWithDriver(t *testing.T) {
	f := newFixture(t, config.DriverSQLite)
	f.login(t)

	_, err := os.Stat(filepath.Join(f.dir, "murmur.db"))
	require.NoError(t, err)

	f = newFixture(t, config.DriverFile)
	f.login(t)

	_, err = os.Stat(filepath.Join(f.dir, "session.json"))
	require.NoError(t, err)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture(t, config.DriverFile)

	_, err := f.run(t, &LoginCmd{Username: "alice", Password: "nope"})
	require.Error(t, err)
	require.True(t, client.IsStatus(err, http.StatusUnauthorized))

	out := f.mustRun(t, &WhoamiCmd{})
	assert.Equal(t, "Not logged in.\n", out)
}

func TestRegisterCmd(t *testing.T) {
	f := newFixture(t, config.DriverFile)

	out := f.mustRun(t, &RegisterCmd{
		Username: "carol",
		Email:    "carol@example.com",
		Password: "carol-pw",
		Login:    true,
	})
	assert.Contains(t, out, "User created successfully: carol")
	assert.Contains(t, out, "Logged in as carol")

	out = f.mustRun(t, &WhoamiCmd{})
	assert.Contains(t, out, "carol (id ")
}

func TestRegisterCmd_NoLogin(t *testing.T) {
	f := newFixture(t, config.DriverFile)

	out := f.mustRun(t, &RegisterCmd{Username: "carol", Email: "carol@example.com", Password: "carol-pw"})
	assert.NotContains(t, out, "Logged in")

	out = f.mustRun(t, &WhoamiCmd{})
	assert.Equal(t, "Not logged in.\n", out)
}

func TestRegisterCmd_UsernameTaken(t *testing.T) {
	f := newFixture(t, config.DriverFile)

	_, err := f.run(t, &RegisterCmd{Username: "alice", Email: "other@example.com", Password: "pw"})
	require.Error(t, err)
	require.True(t, client.IsStatus(err, http.StatusBadRequest))
	assert.Contains(t, client.Describe(err), "Username is already taken.")
}

func TestRegisterCmd_MissingEmail(t *testing.T) {
	f := newFixture(t, config.DriverFile)

	_, err := f.run(t, &RegisterCmd{Username: "carol", Password: "pw"})
	require.ErrorIs(t, err, models.ErrInvalidRequest)
}
