package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/go-connections/nat"
	"github.com/mbeckett/TuneVault/pkg/docker"
)

// DatabaseConfig is a subset of the configuration focusing solely
// on database connection items.
type DatabaseConfig struct {
	User     string `yaml:"username" env:"DB_USERNAME" env-required:"true"`
	Password string `yaml:"password" env:"DB_PASSWORD" env-required:"true"`
	Name     string `yaml:"name" env:"DB_NAME" env-default:"TUNEVAULT_DB"`
	Host     string `yaml:"host" env:"DB_HOST" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"DB_PORT" env-default:"5432"`
	SslMode  string `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`
}

// InitialiseDockerDatabase spawns a PostgreSQL container matching the connection
// config provided, for deployments that do not point at an existing hosted database.
// The container's data directory is bind-mounted under the user's home dir so the
// catalog survives restarts.
func InitialiseDockerDatabase(dockerManager docker.DockerManager, config DatabaseConfig, crashHandler func(error)) (docker.DockerContainer, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot initialise docker db volume mount as user home dir is unavailable: %s", err.Error())
	}

	dbDataPath := filepath.Join(homeDir, "tunevault_db.dat")
	if err := os.MkdirAll(dbDataPath, os.ModeDir|os.ModePerm); err != nil {
		return nil, err
	}

	containerConfig := &container.Config{
		Image: "postgres:14.1-alpine",
		Env: []string{
			fmt.Sprintf("POSTGRES_PASSWORD=%s", config.Password),
			fmt.Sprintf("POSTGRES_USER=%s", config.User),
			fmt.Sprintf("POSTGRES_DB=%s", config.Name),
			fmt.Sprintf("DATABASE_HOST=%s", config.Host),
		},
		ExposedPorts: nat.PortSet{
			"5432": struct{}{},
		},
	}
	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			nat.Port(config.Port): []nat.PortBinding{{
				HostIP:   config.Host,
				HostPort: config.Port,
			}},
		},
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: dbDataPath,
				Target: "/var/lib/postgresql/data",
			},
		},
	}

	db := docker.NewDockerContainer("db", "postgres:14.1-alpine", containerConfig, hostConfig)
	if err := dockerManager.SpawnContainer(db); err != nil {
		return nil, err
	}

	// Watch for container crash (teardown)
	go func() {
		st, err := dockerManager.WaitForContainer(db, docker.CRASHED)
		if st != docker.CRASHED || err != nil {
			return
		}

		crashHandler(fmt.Errorf("container %s has crashed", db))
	}()

	return db, nil
}
