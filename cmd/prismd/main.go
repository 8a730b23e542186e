package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"gopkg.in/natefinch/lumberjack.v2"

	"prism/config"
	"prism/core/events"
	"prism/core/host"
	"prism/core/state"
	"prism/core/types"
	"prism/native/merchant"
	"prism/native/pool"
	"prism/native/prism"
	"prism/native/rewards"
	"prism/native/router"
	"prism/observability"
	"prism/observability/logging"
	"prism/rpc"
	"prism/storage"
)

const envKey = "PRISM_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	env := strings.TrimSpace(os.Getenv(envKey))
	if env == "" {
		env = strings.TrimSpace(cfg.Environment)
	}
	var logOut io.Writer
	if strings.TrimSpace(cfg.LogFile) != "" {
		logOut = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
		}
	}
	logger := logging.Setup("prismd", env, logOut)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	rt, err := buildRuntime(cfg, db, logger)
	if err != nil {
		logger.Error("Failed to assemble actor runtime", slog.Any("error", err))
		os.Exit(1)
	}

	routerAddr, _ := config.Address(cfg.RouterAddress)
	coreAddr, _ := config.Address(cfg.StorageCoreAddress)
	adminAddr, _ := config.Address(cfg.AdminAddress)
	token := strings.TrimSpace(os.Getenv(cfg.RPCTokenEnv))
	if token == "" {
		logger.Warn("RPC admin token not configured; mutating methods are disabled", "env", cfg.RPCTokenEnv)
	} else {
		logger.Info("RPC admin token loaded", "env", cfg.RPCTokenEnv, logging.MaskField("token", token))
	}

	go sampleRewardAggregates(rt, coreAddr, logger)

	server := rpc.NewServer(rt, routerAddr, coreAddr, adminAddr, token, logger)
	logger.Info("prismd ready", "network", cfg.NetworkName, "router", routerAddr.Hex())
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// buildRuntime opens the state manager and seats every configured actor. The
// seeded admin and route records are committed before the server accepts
// traffic so a crash during boot cannot leave a half-initialised tree.
func buildRuntime(cfg *config.Config, db storage.Database, logger *slog.Logger) (*host.Runtime, error) {
	st := state.NewManager(db)
	rt := host.NewRuntime(st, host.NewWallClock(cfg.BlockIntervalMillis))

	adminAddr, err := config.Address(cfg.AdminAddress)
	if err != nil {
		return nil, err
	}
	routerAddr, err := config.Address(cfg.RouterAddress)
	if err != nil {
		return nil, err
	}
	coreAddr, err := config.Address(cfg.StorageCoreAddress)
	if err != nil {
		return nil, err
	}
	poolAddr, err := config.Address(cfg.PoolLogicAddress)
	if err != nil {
		return nil, err
	}
	merchantAddr, err := config.Address(cfg.MerchantLogicAddress)
	if err != nil {
		return nil, err
	}
	legacyAddr, err := config.Address(cfg.LegacyPoolAddress)
	if err != nil {
		return nil, err
	}

	var legacy rewards.LegacyPool = rewards.NoLegacy{}
	if !legacyAddr.IsZero() {
		legacy = rewards.LegacyClient{Addr: legacyAddr}
	}

	core, err := rewards.NewStore(coreAddr, st, routerAddr, legacy)
	if err != nil {
		return nil, fmt.Errorf("storage core: %w", err)
	}
	poolLogic, err := pool.NewLogic(poolAddr, st, cfg.MaxContextAgeMillis)
	if err != nil {
		return nil, fmt.Errorf("pool logic: %w", err)
	}
	merchantLogic, err := merchant.NewLogic(merchantAddr, st, cfg.MaxContextAgeMillis)
	if err != nil {
		return nil, fmt.Errorf("merchant logic: %w", err)
	}
	emitter := observability.MetricsEmitter{Inner: slogEmitter{logger: logger}}
	rtr, err := router.NewRouter(routerAddr, st, adminAddr, coreAddr, emitter)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	for _, actor := range []host.Actor{core, poolLogic, merchantLogic, rtr} {
		if err := rt.Register(actor); err != nil {
			return nil, err
		}
	}
	if err := st.Commit(); err != nil {
		return nil, fmt.Errorf("commit bootstrap state: %w", err)
	}
	return rt, nil
}

// sampleRewardAggregates periodically mirrors the storage core totals into
// the Prometheus gauges.
func sampleRewardAggregates(rt *host.Runtime, coreAddr types.Address, logger *slog.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		merchantVolume, err := queryBig(rt, coreAddr, "get_total_merchant_volume")
		if err != nil {
			logger.Debug("sample merchant volume", slog.Any("error", err))
			continue
		}
		rewardPool, err := queryBig(rt, coreAddr, "get_total_reward_pool")
		if err != nil {
			logger.Debug("sample reward pool", slog.Any("error", err))
			continue
		}
		observability.Rewards().RecordAggregates(merchantVolume, rewardPool)
	}
}

func queryBig(rt *host.Runtime, to types.Address, method string) (*big.Int, error) {
	reply, err := rt.Query(to, prism.SelectorOf(method), nil)
	if err != nil {
		return nil, err
	}
	value := new(big.Int)
	if err := rlp.DecodeBytes(reply, value); err != nil {
		return nil, err
	}
	return value, nil
}

// slogEmitter mirrors emitted domain events into the structured log.
type slogEmitter struct {
	logger *slog.Logger
}

func (e slogEmitter) Emit(evt events.Event) {
	if evt == nil || e.logger == nil {
		return
	}
	e.logger.Info("event emitted", "type", evt.EventType(), "event", fmt.Sprintf("%+v", evt))
}
