// Command node starts a permissioned PoET voting-chain node.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tolelom/tolchain/chain"
	"github.com/tolelom/tolchain/config"
	"github.com/tolelom/tolchain/crypto/certgen"
	"github.com/tolelom/tolchain/events"
	"github.com/tolelom/tolchain/metrics"
	"github.com/tolelom/tolchain/network"
	"github.com/tolelom/tolchain/poet"
	"github.com/tolelom/tolchain/rpc"
	"github.com/tolelom/tolchain/server"
	"github.com/tolelom/tolchain/validator"
	"github.com/tolelom/tolchain/wallet"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	keyPath := flag.String("key", "validator.key", "path to keystore file")
	genKey := flag.Bool("genkey", false, "generate a new validator key and exit")
	genCerts := flag.String("gencerts", "", "generate CA + node TLS certs into the given directory and exit (requires node ID from config)")
	flag.Parse()

	// Read keystore password from environment (not CLI flags — they leak via ps).
	password := os.Getenv("TOL_PASSWORD")
	if password == "" {
		log.Println("WARNING: TOL_PASSWORD not set — keystore will use an empty password")
	}

	// ---- generate key mode ----
	if *genKey {
		w, err := wallet.Generate()
		if err != nil {
			log.Fatal(err)
		}
		if err := wallet.SaveKey(*keyPath, password, w.PrivKey()); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Generated key. Public key (validator identity): %s\n", w.PubKey())
		fmt.Printf("Saved to: %s\n", *keyPath)
		return
	}

	// ---- generate certs mode ----
	if *genCerts != "" {
		cfgForCerts, err := loadConfig(*cfgPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if err := certgen.GenerateAll(*genCerts, cfgForCerts.NodeID, nil); err != nil {
			log.Fatalf("gencerts: %v", err)
		}
		fmt.Printf("Certificates generated in %s for node %q\n", *genCerts, cfgForCerts.NodeID)
		return
	}

	// ---- load config ----
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- load validator key ----
	privKey, err := wallet.LoadKey(*keyPath, password)
	if err != nil {
		log.Fatalf("load key: %v", err)
	}
	pubHex := privKey.Public().Hex()

	// ---- TLS ----
	tlsCfg, err := config.LoadTLSConfig(cfg.TLS)
	if err != nil {
		log.Fatalf("tls: %v", err)
	}
	if tlsCfg != nil {
		log.Println("mTLS configured for P2P listener and outbound peer dials")
	}

	// ---- chain + events ----
	c := chain.NewChain()
	emitter := events.NewEmitter()
	c.SetEmitter(emitter)
	emitter.Subscribe(events.EventBlockSealed, func(ev events.Event) {
		log.Printf("[events] block sealed: %s", ev.BlockHash)
	})

	// ---- network node + local validator ----
	// Only this node's own roster entry is known locally; the rest of
	// the permissioned roster announces itself via NEW_VALIDATOR once
	// peers connect (spec.md §4.7) — config only names which keys are
	// authorised, not where they currently live.
	self := network.Addr{Host: "0.0.0.0", Port: cfg.P2PPort}
	node := network.NewNode(self, c)
	node.SetTLSConfig(tlsCfg)
	if cfg.ValidatorKey != "" {
		node.RegisterValidator(validator.New(cfg.ValidatorKey, self.Host, self.Port))
	}

	// ---- metrics ----
	m := metrics.New(prometheus.DefaultRegisterer)
	c.SetMetrics(m)

	// ---- PoET coordinator ----
	coord := poet.New(node)
	coord.SetMetrics(m)

	// ---- P2P server ----
	p2pAddr := fmt.Sprintf(":%d", cfg.P2PPort)
	srv := server.NewServer(node, p2pAddr, coord)
	if err := srv.Start(); err != nil {
		log.Fatalf("p2p start: %v", err)
	}
	defer srv.Stop()
	log.Printf("P2P listening on %s", p2pAddr)

	// ---- connect to seed peers ----
	for _, sp := range cfg.SeedPeers {
		srv.ConnectToPeer(network.Addr{Host: sp.Host, Port: sp.Port})
		log.Printf("Connecting to seed peer %s:%d", sp.Host, sp.Port)
	}

	// ---- RPC ----
	rpcAddr := fmt.Sprintf(":%d", cfg.RPCPort)
	rpcHandler := rpc.NewHandler(node, coord)
	rpcServer := rpc.NewServer(rpcAddr, rpcHandler, cfg.RPCAuthToken)
	if err := rpcServer.Start(); err != nil {
		log.Fatalf("rpc start: %v", err)
	}
	defer rpcServer.Stop()
	log.Printf("RPC listening on %s", rpcAddr)
	if cfg.RPCAuthToken != "" {
		log.Println("RPC Bearer token authentication enabled")
	}
	log.Printf("Node %q running (validator key: %s)", cfg.NodeID, pubHex)

	// ---- metrics sampling loop ----
	sampleDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sample(c.PendingSize(), len(node.Peers()), c.Len())
			case <-sampleDone:
				return
			}
		}
	}()

	// ---- graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")

	close(sampleDone)
	node.StopAllWaitTimers()

	// Deferred calls run in LIFO: rpcServer.Stop → srv.Stop
	log.Println("Shutdown complete.")
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config file not found at %s, using defaults.", path)
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}
