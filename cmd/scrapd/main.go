// Command scrapd runs the reference protocol host: a UDP datagram loop
// that decodes incoming envelopes, runs them past the capability verifier
// and the replay/revocation guard, and an admin HTTP surface for
// revocation-list refresh and guard stats.
package main

import (
	"encoding/hex"
	"flag"
	"net"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"scrap-protocol/clock"
	"scrap-protocol/cmd/scrapd/routes"
	"scrap-protocol/core"
	"scrap-protocol/messages"
	pkgconfig "scrap-protocol/pkg/config"
	"scrap-protocol/replay"
	"scrap-protocol/token"
	"scrap-protocol/verifier"
)

var log = logrus.New()

func main() {
	env := flag.String("env", "", "environment name merged over the default config")
	flag.Parse()

	cfg, err := pkgconfig.Load(*env)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	if cfg.Logging.Level != "" {
		level, err := logrus.ParseLevel(cfg.Logging.Level)
		if err != nil {
			log.WithError(err).Warn("invalid log level, defaulting to info")
		} else {
			log.SetLevel(level)
		}
	}

	operatorPubkey, err := hex.DecodeString(cfg.Identity.OperatorPubkey)
	if err != nil {
		log.WithError(err).Fatal("decode identity.operator_pubkey")
	}
	executorPubkey, err := hex.DecodeString(cfg.Identity.ExecutorPubkey)
	if err != nil {
		log.WithError(err).Fatal("decode identity.executor_pubkey")
	}
	v := verifier.New(operatorPubkey, executorPubkey, clock.SystemClock{})

	revoked, err := replay.LoadRevokedFile(cfg.Replay.RevokedFile)
	if err != nil {
		log.WithError(err).Fatal("load revocation list")
	}
	guard := replay.NewMemoryGuard(revoked)
	ledger := core.NewLedger()

	admin := &routes.AdminServer{Guard: guard, RevokedFile: cfg.Replay.RevokedFile, Ledger: ledger}
	router := routes.NewRouter(admin)
	go func() {
		log.Infof("admin http surface listening on %s", cfg.Listen.HTTPAddr)
		if err := http.ListenAndServe(cfg.Listen.HTTPAddr, router); err != nil {
			log.WithError(err).Fatal("admin http surface")
		}
	}()

	runDatagramLoop(cfg.Listen.UDPAddr, v, guard, ledger)
}

// runDatagramLoop owns the UDP socket and processes one datagram at a
// time; the protocol's own messages are small and unordered, so no
// connection state lives across packets beyond the replay guard and the
// escrow ledger.
func runDatagramLoop(addr string, v *verifier.Verifier, guard replay.Guard, ledger *core.Ledger) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		log.WithError(err).Fatal("resolve udp address")
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		log.WithError(err).Fatal("listen udp")
	}
	defer conn.Close()

	log.Infof("udp datagram loop listening on %s", addr)
	buf := make([]byte, 65535)
	for {
		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			log.WithError(err).Warn("udp read failed")
			continue
		}
		handleDatagram(v, guard, ledger, peer.String(), append([]byte(nil), buf[:n]...))
	}
}

func handleDatagram(v *verifier.Verifier, guard replay.Guard, ledger *core.Ledger, peer string, datagram []byte) {
	env, err := messages.DecodeEnvelope(datagram)
	if err != nil {
		log.WithError(err).WithField("peer", peer).Warn("decode envelope failed")
		return
	}

	entry := log.WithField("peer", peer)
	switch {
	case env.Request != nil:
		handleRequest(entry, v, guard, env.Request)
	case env.Proof != nil:
		if err := v.VerifyProof(env.Proof); err != nil {
			entry.WithError(err).Warn("execution proof rejected")
			return
		}
		entry.WithField("task_id", env.Proof.TaskID).Info("execution proof accepted")
	case env.Claim != nil:
		if err := v.VerifyClaim(env.Claim); err != nil {
			entry.WithError(err).Warn("payment claim rejected")
			return
		}
		if err := ledger.Release(env.Claim.TaskID); err != nil {
			entry.WithError(err).Warn("ledger release failed")
			return
		}
		entry.WithField("task_id", env.Claim.TaskID).Info("payment claim accepted")
	case env.Accept != nil:
		entry.WithField("in_reply_to", hex.EncodeToString(env.Accept.InReplyTo[:])).Info("task accept received")
	case env.Reject != nil:
		if err := ledger.Cancel(env.Reject.TaskID); err != nil {
			entry.WithError(err).Warn("ledger cancel failed")
		}
		entry.WithField("task_id", env.Reject.TaskID).Info("task reject received")
	case env.Lock != nil:
		if _, err := ledger.Lock(env.Lock.TaskID, env.Lock.AmountSats); err != nil {
			entry.WithError(err).Warn("ledger lock failed")
			return
		}
		entry.WithField("task_id", env.Lock.TaskID).Info("payment lock received")
	default:
		entry.Warn("envelope carried no recognized message")
	}
}

func handleRequest(entry *logrus.Entry, v *verifier.Verifier, guard replay.Guard, req *messages.TaskRequest) {
	if err := v.VerifyRequest(req); err != nil {
		entry.WithError(err).WithField("task_id", req.TaskID).Warn("task request rejected")
		return
	}

	tokenID, err := requestTokenID(req)
	if err != nil {
		entry.WithError(err).Warn("task request capability token undecodable")
		return
	}
	if guard.IsRevoked(tokenID) {
		entry.WithField("task_id", req.TaskID).Warn("task request capability token revoked")
		return
	}
	status, err := guard.CheckAndInsert(tokenID)
	if err != nil {
		entry.WithError(err).Warn("replay guard unavailable")
		return
	}
	if status == replay.Replay {
		entry.WithField("task_id", req.TaskID).Warn("task request capability token replayed")
		return
	}

	entry.WithField("task_id", req.TaskID).Info("task request accepted")
}

func requestTokenID(req *messages.TaskRequest) ([16]byte, error) {
	tok, err := token.DecodeTLV(req.CapabilityToken)
	if err != nil {
		return [16]byte{}, err
	}
	return tok.TokenID, nil
}

func init() {
	if os.Getenv("SCRAP_LOG_FORMAT") == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
}
