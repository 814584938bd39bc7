package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"

	"plant-telemetry/internal/cache"
	"plant-telemetry/internal/plants"
	"plant-telemetry/internal/store"
)

const serviceName = "plant-ingestor"

var envFile string

var rootCmd = &cobra.Command{
	Use:   serviceName,
	Short: "Ukládá telemetrii rostlin z MQTT do dokumentového úložiště",
	Long: `Poslouchá na plants/+/telemetry, validuje zprávy a ukládá měření idempotentně.
Pro každou rostlinu udržuje právě jedno aktuální měření (is_current).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return LoadEnvFile(envFile)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Založí tabulku a indexy v Postgresu (idempotentní)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		pg, err := store.NewPostgres(ctx, cfg.PostgresURL, plants.KeyFields(cfg.PlantsColl, cfg.SensorColl))
		if err != nil {
			return err
		}
		defer pg.Close()

		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		logger.Info("Schéma je připraveno")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "soubor s ENV proměnnými (nepovinný)")
	rootCmd.AddCommand(schemaCmd)
}

func main() {
	// Blokujeme, dokud nepřijde SIGINT (Ctrl+C) nebo SIGTERM (Docker stop).
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Sem se dostanou jen chyby při startu (konfigurace, nedostupné MQTT/DB).
		// Docker kontejner se restartuje a zkusí to znovu.
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Načtení Konfigurace
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("neplatná konfigurace: %w", err)
	}

	// --- SETUP LOGGERU ---
	// Logger potřebujeme dřív než MQTT klienta (problém slepice-vejce).
	// Writer do MQTT proto vytvoříme hned a klienta do něj připojíme až po Connect.
	mqttWriter := NewMqttLogWriter(serviceName)
	var out io.Writer = os.Stdout
	if cfg.LogToMQTT {
		out = io.MultiWriter(os.Stdout, mqttWriter)
	}
	logger := newLogger(out, cfg.LogLevel)
	slog.SetDefault(logger)

	// Interní logy paho (reconnecty, chyby spojení) přesměrujeme do slogu.
	mqtt.ERROR = slog.NewLogLogger(logger.Handler(), slog.LevelError)
	mqtt.CRITICAL = slog.NewLogLogger(logger.Handler(), slog.LevelError)
	mqtt.WARN = slog.NewLogLogger(logger.Handler(), slog.LevelWarn)

	logger.Info("Spouštím službu Plant Ingestor", "config", cfg)

	// 1. Úložiště
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// 2. Valkey (volitelně)
	var current currentCache
	if cfg.ValkeyAddr != "" {
		c, err := cache.Dial(ctx, cfg.ValkeyAddr, cfg.CurrentCacheTTL)
		if err != nil {
			logger.Error("Kritická chyba: Nelze se připojit k Valkey", "error", err)
			return err
		}
		defer c.Close()
		current = c
		logger.Info("Valkey připojen", "addr", cfg.ValkeyAddr)
	}

	// 3. Inicializace komponent (Wiring)
	enforcer := NewCurrencyEnforcer(st, cfg.SensorColl, cfg.FlushIsCurrent, cfg.EnforcePageSize, cfg.EnforceConcurrency, logger)
	upserter := NewReadingUpserter(st, cfg.SensorColl, enforcer)
	var registrar *PlantRegistrar
	if cfg.UpsertPlantOnSeen {
		registrar = NewPlantRegistrar(st, cfg.PlantsColl)
	}
	pipeline := NewPipeline(registrar, upserter, current, cfg.StoreTimeout, logger)

	// 4. Nastavení MQTT Klienta
	sub := NewSubscriber(ctx, cfg.InputTopic, cfg.MQTTQoS, pipeline, logger)

	opts := mqtt.NewClientOptions().AddBroker(cfg.MQTTBroker).SetClientID(cfg.MQTTClientID)
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(cfg.MQTTCleanSession)
	opts.SetOrderMatters(cfg.OrderMatters)
	sub.Configure(opts)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Error("Fatal MQTT Error", "broker", cfg.MQTTBroker, "error", token.Error())
		return token.Error()
	}
	// Odpojení s timeoutem 250ms při ukončení
	defer client.Disconnect(250)
	mqttWriter.Attach(client)

	if err := sub.WaitReady(2 * subscribeTimeout); err != nil {
		logger.Error("Subscribe selhal", "topic", cfg.InputTopic, "error", err)
		return err
	}

	// 5. Healthcheck server (pro Docker/K8s)
	go startHealthServer(ctx, cfg.HTTPPort, newHealthHandler(client.IsConnectionOpen), logger)

	// 6. Graceful Shutdown
	<-ctx.Done()
	logger.Info("Ukončuji službu...")
	// Zde proběhnou defery (disconnect mqtt, close Valkey, close db pool)
	return nil
}

// openStore vytvoří úložiště podle STORE_DRIVER. Vrací i funkci pro uzavření.
func openStore(ctx context.Context, cfg Config, logger *slog.Logger) (store.Store, func(), error) {
	keys := plants.KeyFields(cfg.PlantsColl, cfg.SensorColl)

	if cfg.StoreDriver == "memory" {
		logger.Warn("Používám paměťové úložiště, data po restartu zmizí")
		return store.NewMemory(keys), func() {}, nil
	}

	// Pokud se nelze připojit k DB při startu, nemá smysl pokračovat.
	pg, err := store.NewPostgres(ctx, cfg.PostgresURL, keys)
	if err != nil {
		logger.Error("Kritická chyba: Nelze se připojit k DB", "error", err)
		return nil, nil, err
	}
	if cfg.SchemaAutoSetup {
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			logger.Error("Kritická chyba: Nelze založit schéma", "error", err)
			return nil, nil, err
		}
	}
	logger.Info("Databáze připojena")
	return pg, pg.Close, nil
}

// newLogger vytvoří JSON logger (standard pro kontejnery) s úrovní z LOG_LEVEL.
func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
