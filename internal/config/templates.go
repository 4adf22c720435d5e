package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "units":
		return unitsTemplate, nil
	case "controller":
		return controllerTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const unitsTemplate = `[[units]]
handle = 7
id = 1
label = "Lumberjack"
category = "Advanced"
running = true

[[units]]
handle = 8
id = 2
label = "Miner"
category = "Advanced"

[[units]]
handle = 9
id = 3
category = "Normal"
running = true

[[units]]
handle = 12
id = 4
label = "Guard"
category = "Command"
`

const controllerTemplate = `controller_id = "unitctl"
listen_addr = "127.0.0.1:7420"
admin_addr = "127.0.0.1:7421"
units_file = "units.toml"
cors_origins = ["http://localhost:3000"]

[session]
handshake_timeout_ms = 5000
idle_timeout_ms = 600000
write_timeout_ms = 5000
request_timeout_ms = 5000
`
