package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var errBadServiceName = errors.New("neplatný název služby")

// Název služby jde do názvu souboru, takže žádné lomítka ani tečky na začátku.
var serviceNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// Collector ukládá logy služeb z MQTT do souborů <dir>/<služba>.log.
type Collector struct {
	dir    string
	logger *slog.Logger

	// paho může volat handler souběžně (OrderMatters=false), řádky se nesmí proplést.
	mu sync.Mutex
}

// NewCollector připraví adresář pro logy.
func NewCollector(dir string, logger *slog.Logger) (*Collector, error) {
	// Pokud adresář neexistuje, vytvoříme ho (včetně podadresářů).
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("nelze vytvořit adresář pro logy: %w", err)
	}
	return &Collector{dir: dir, logger: logger}, nil
}

// serviceFromTopic vrací název služby z topicu "logs/<služba>[/...]".
func serviceFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || !serviceNameRe.MatchString(parts[1]) {
		return "", fmt.Errorf("%w: %q", errBadServiceName, topic)
	}
	return parts[1], nil
}

// HandleMessage je callback pro každou logovací zprávu z jakékoliv služby.
func (c *Collector) HandleMessage(_ mqtt.Client, msg mqtt.Message) {
	service, err := serviceFromTopic(msg.Topic())
	if err != nil {
		c.logger.Warn("Ignoruji zprávu se špatným formátem topicu", "topic", msg.Topic())
		return
	}
	if err := c.Append(service, msg.Payload()); err != nil {
		c.logger.Error("Chyba při zápisu do souboru", "service", service, "error", err)
	}
}

// Append otevře (nebo vytvoří) soubor a připíše na konec nový řádek.
// Pattern "Open-Write-Close" pro každý zápis snese rotaci logů zvenku.
func (c *Collector) Append(service string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	filename := filepath.Join(c.dir, service+".log")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	// slog JSON handler řádek ukončuje, MQTT payload od jiných klientů ho mít nemusí.
	line := data
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(append(make([]byte, 0, len(data)+1), data...), '\n')
	}
	_, err = f.Write(line)
	return err
}
