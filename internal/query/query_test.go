package query

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"testing"
	"time"

	mcnet "github.com/Tnze/go-mc/net"
	"github.com/Tnze/go-mc/net/packet"
	"github.com/woozymasta/craftping/internal/bedrock"
	"github.com/woozymasta/craftping/internal/java"
	"github.com/woozymasta/craftping/internal/mcerr"
	"github.com/woozymasta/craftping/internal/models"
	"github.com/woozymasta/craftping/internal/resolver"
)

type fakeJava func(ctx context.Context, addr resolver.Address) (*java.Status, error)

func (f fakeJava) Query(ctx context.Context, addr resolver.Address) (*java.Status, error) {
	return f(ctx, addr)
}

type fakeBedrock func(ctx context.Context, addr resolver.Address) (*bedrock.Status, error)

func (f fakeBedrock) Query(ctx context.Context, addr resolver.Address) (*bedrock.Status, error) {
	return f(ctx, addr)
}

type fakeResolver struct {
	addr resolver.Address
	err  error
}

func (f fakeResolver) ResolveHostPort(_ context.Context, host string, port int, ed models.Edition) (resolver.Address, error) {
	if f.err != nil {
		return resolver.Address{}, f.err
	}
	addr := f.addr
	if addr.Host == "" {
		addr = resolver.Address{Host: host, IP: net.ParseIP("127.0.0.1"), Port: uint16(port), Edition: ed}
	}
	return addr, nil
}

func unusedJava(t *testing.T) fakeJava {
	return func(context.Context, resolver.Address) (*java.Status, error) {
		t.Fatalf("java client must not be called")
		return nil, nil
	}
}

// startStatusServer answers SLP status and ping requests through go-mc.
func startStatusServer(t *testing.T, status string) int {
	t.Helper()

	l, err := mcnet.ListenMC("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer func() { _ = conn.Close() }()
				for i := 0; i < 2; i++ {
					if _, err := conn.ReadPacket(); err != nil {
						return
					}
				}
				if err := conn.WritePacket(packet.Marshal(0x00, packet.String(status))); err != nil {
					return
				}
				p, err := conn.ReadPacket()
				if err != nil {
					return
				}
				_ = conn.WritePacket(p)
			}()
		}
	}()

	return l.Addr().(*net.TCPAddr).Port
}

func TestQueryServerInvalidInput(t *testing.T) {
	svc := New(Options{Resolver: fakeResolver{}, Java: unusedJava(t)})

	cases := []struct {
		name    string
		host    string
		edition string
		port    int
		timeout time.Duration
	}{
		{name: "empty host", host: "  "},
		{name: "bad type", host: "mc.example.com", edition: "pocket-java"},
		{name: "port too large", host: "mc.example.com", port: 70000},
		{name: "negative port", host: "mc.example.com", port: -1},
		{name: "bad embedded port", host: "mc.example.com:abc"},
		{name: "negative timeout", host: "mc.example.com", timeout: -time.Second},
	}

	for _, tc := range cases {
		res := svc.QueryServer(context.Background(), tc.host, tc.port, tc.edition, tc.timeout)
		if res.ErrorKind != mcerr.KindInvalidInput || res.Status != models.StatusError || res.Online {
			t.Fatalf("%s: expected INVALID_INPUT error, got %+v", tc.name, res)
		}
		if res.ErrorMessage == "" || res.PlayersSample == nil {
			t.Fatalf("%s: incomplete failure result %+v", tc.name, res)
		}
	}
}

func TestQueryServerJava(t *testing.T) {
	port := startStatusServer(t, `{"version":{"name":"Paper 1.21.4","protocol":769},"players":{"max":100,"online":3,"sample":[{"name":"Alex","id":"x"}]},"description":{"text":"§aHello","extra":[{"text":" world"}]},"favicon":"data:image/png;base64,AAAA"}`)

	svc := New(Options{})
	res := svc.QueryServer(context.Background(), "127.0.0.1", port, "java", 2*time.Second)

	if res.Status != models.StatusSuccess || !res.Online || res.ErrorKind != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Version != "Paper 1.21.4" || res.PlayersOnline != 3 || res.PlayersMax != 100 || res.MOTDPlain != "Hello world" {
		t.Fatalf("unexpected fields %+v", res)
	}
	if len(res.PlayersSample) != 1 || res.Favicon == nil || res.Port != port || res.Host != "127.0.0.1" {
		t.Fatalf("unexpected details %+v", res)
	}
}

func TestQueryServerIdempotent(t *testing.T) {
	port := startStatusServer(t, `{"version":{"name":"1.20.1","protocol":763},"players":{"max":20,"online":0},"description":"Test"}`)
	svc := New(Options{})

	first := svc.QueryServer(context.Background(), "127.0.0.1", port, "java", 2*time.Second)
	second := svc.QueryServer(context.Background(), "127.0.0.1", port, "java", 2*time.Second)
	first.LatencyMs, second.LatencyMs = 0, 0

	if first.Status != models.StatusSuccess || first.MOTDPlain != second.MOTDPlain || first.Version != second.Version ||
		first.PlayersMax != second.PlayersMax || first.Port != second.Port || first.Online != second.Online {
		t.Fatalf("repeated queries differ:\n%+v\n%+v", first, second)
	}
}

func TestQueryServerTimeout(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	// Accept and stay silent.
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				_, _ = io.Copy(io.Discard, conn)
				_ = conn.Close()
			}()
		}
	}()

	svc := New(Options{})
	port := l.Addr().(*net.TCPAddr).Port

	start := time.Now()
	res := svc.QueryServer(context.Background(), "127.0.0.1", port, "java", 200*time.Millisecond)
	elapsed := time.Since(start)

	if res.Status != models.StatusTimeout || res.ErrorKind != mcerr.KindTimeout || res.Online {
		t.Fatalf("expected timeout, got %+v", res)
	}
	if !strings.Contains(res.ErrorMessage, "200ms") {
		t.Fatalf("timeout message must name the budget: %q", res.ErrorMessage)
	}
	if elapsed > 500*time.Millisecond {
		t.Fatalf("query returned after %v", elapsed)
	}
}

func TestQueryServerMaxTimeout(t *testing.T) {
	var got time.Duration
	svc := New(Options{
		Resolver:   fakeResolver{},
		MaxTimeout: time.Second,
		Java: fakeJava(func(ctx context.Context, _ resolver.Address) (*java.Status, error) {
			deadline, _ := ctx.Deadline()
			got = time.Until(deadline)
			return &java.Status{}, nil
		}),
	})

	res := svc.QueryServer(context.Background(), "mc.example.com", 0, "", time.Hour)
	if res.Status != models.StatusSuccess || res.Port != int(models.DefaultJavaPort) {
		t.Fatalf("unexpected result %+v", res)
	}
	if got <= 0 || got > time.Second {
		t.Fatalf("deadline not clamped: %v", got)
	}
}

func TestQueryServerClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		kind   mcerr.Kind
		status models.Status
	}{
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, mcerr.KindConnectionRefused, models.StatusError},
		{"classified", mcerr.Protocol(errors.New("bad magic")), mcerr.KindProtocolError, models.StatusError},
		{"unknown", errors.New("something odd"), mcerr.KindProtocolError, models.StatusError},
		{"client timeout", mcerr.Timeout(time.Millisecond, context.DeadlineExceeded), mcerr.KindTimeout, models.StatusTimeout},
	}

	for _, tc := range cases {
		svc := New(Options{
			Resolver: fakeResolver{},
			Bedrock: fakeBedrock(func(context.Context, resolver.Address) (*bedrock.Status, error) {
				return nil, tc.err
			}),
		})

		res := svc.QueryServer(context.Background(), "be.example.com", 0, "bedrock", 3*time.Second)
		if res.ErrorKind != tc.kind || res.Status != tc.status || res.Online {
			t.Fatalf("%s: unexpected result %+v", tc.name, res)
		}
		if res.Port != int(models.DefaultBedrockPort) || res.Type != models.Bedrock {
			t.Fatalf("%s: unexpected address %+v", tc.name, res)
		}
		if tc.kind == mcerr.KindConnectionRefused && !strings.Contains(res.ErrorMessage, "19132") {
			t.Fatalf("refusal must name the port: %q", res.ErrorMessage)
		}
		if tc.kind == mcerr.KindTimeout && !strings.Contains(res.ErrorMessage, "3s") {
			t.Fatalf("timeout must name the query budget: %q", res.ErrorMessage)
		}
	}
}

func TestQueryServerDNSFailure(t *testing.T) {
	svc := New(Options{
		Resolver: fakeResolver{err: mcerr.DNSFailure("nope.invalid", errors.New("no such host"))},
		Java:     unusedJava(t),
	})

	res := svc.Query(context.Background(), models.QueryRequest{Host: "nope.invalid"})
	if res.ErrorKind != mcerr.KindDNSFailure || !strings.Contains(res.ErrorMessage, "spelling") {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestQueryServerKeepsRequestedHost(t *testing.T) {
	svc := New(Options{
		Resolver: fakeResolver{addr: resolver.Address{
			Host: "node7.example.net", IP: net.ParseIP("127.0.0.1"), Port: 25601, Edition: models.Java, SRV: true,
		}},
		Java: fakeJava(func(_ context.Context, addr resolver.Address) (*java.Status, error) {
			if addr.Host != "node7.example.net" || addr.Port != 25601 {
				t.Errorf("client got %s", addr)
			}
			return &java.Status{}, nil
		}),
	})

	res := svc.QueryServer(context.Background(), "play.example.net", 0, "java", 0)
	if res.Host != "play.example.net" || res.Port != 25601 || !res.SRV {
		t.Fatalf("unexpected address fields %+v", res)
	}
}

func TestQueryServerSRVFailureKeepsRecordKey(t *testing.T) {
	srvAddr := resolver.Address{
		Host: "node7.example.net", IP: net.ParseIP("127.0.0.1"), Port: 25570, Edition: models.Java, SRV: true,
	}
	refused := fakeJava(func(context.Context, resolver.Address) (*java.Status, error) {
		return nil, &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}
	})
	ok := fakeJava(func(context.Context, resolver.Address) (*java.Status, error) {
		return &java.Status{}, nil
	})

	now := time.Now()
	failed := New(Options{Resolver: fakeResolver{addr: srvAddr}, Java: refused}).
		QueryServer(context.Background(), "play.example.net", 0, "java", 0)
	online := New(Options{Resolver: fakeResolver{addr: srvAddr}, Java: ok}).
		QueryServer(context.Background(), "play.example.net", 0, "java", 0)

	if failed.ErrorKind != mcerr.KindConnectionRefused || !failed.SRV || failed.Port != 25570 {
		t.Fatalf("unexpected failed result %+v", failed)
	}
	if a, b := failed.Record(now), online.Record(now); a.Port != b.Port || a.Port != int(models.DefaultJavaPort) || a.Host != b.Host {
		t.Fatalf("history keys differ: %s:%d vs %s:%d", a.Host, a.Port, b.Host, b.Port)
	}
}

func TestQueryServerDeniesResolvedAddress(t *testing.T) {
	deny := NewDenyList([]string{"127.0.0.1", "Blocked.Example.NET."})

	cases := []struct {
		name string
		addr resolver.Address
	}{
		{"resolved ip", resolver.Address{Host: "localhost", IP: net.ParseIP("127.0.0.1"), Port: 25565, Edition: models.Java}},
		{"srv target", resolver.Address{Host: "blocked.example.net", IP: net.ParseIP("192.0.2.7"), Port: 25570, Edition: models.Java, SRV: true}},
	}

	for _, tc := range cases {
		svc := New(Options{Resolver: fakeResolver{addr: tc.addr}, Java: unusedJava(t), Deny: deny.Address})

		res := svc.QueryServer(context.Background(), "play.example.net", 0, "java", 0)
		if res.ErrorKind != mcerr.KindInvalidInput || res.Online || res.Host != "play.example.net" {
			t.Fatalf("%s: unexpected result %+v", tc.name, res)
		}
	}

	allowed := New(Options{
		Resolver: fakeResolver{addr: resolver.Address{Host: "mc.example.com", IP: net.ParseIP("192.0.2.8"), Port: 25565, Edition: models.Java}},
		Java: fakeJava(func(context.Context, resolver.Address) (*java.Status, error) {
			return &java.Status{}, nil
		}),
		Deny: deny.Address,
	})
	if res := allowed.QueryServer(context.Background(), "mc.example.com", 0, "java", 0); res.Status != models.StatusSuccess {
		t.Fatalf("allowed host rejected: %+v", res)
	}
}

func TestDenyList(t *testing.T) {
	deny := NewDenyList([]string{"Example.com.", "::ffff:10.0.0.1", " "})

	for host, want := range map[string]bool{
		"example.com":  true,
		"EXAMPLE.COM.": true,
		"10.0.0.1":     true,
		"example.org":  false,
		"":             false,
	} {
		if got := deny.Denied(host); got != want {
			t.Fatalf("Denied(%q) = %v, want %v", host, got, want)
		}
	}

	if (DenyList{}).Address(resolver.Address{Host: "example.com"}) {
		t.Fatalf("empty list must allow everything")
	}
}

func TestQueryServerRecoversPanics(t *testing.T) {
	svc := New(Options{
		Resolver: fakeResolver{},
		Java: fakeJava(func(context.Context, resolver.Address) (*java.Status, error) {
			panic("boom")
		}),
	})

	res := svc.QueryServer(context.Background(), "mc.example.com", 0, "java", 0)
	if res.Status != models.StatusError || res.ErrorKind != mcerr.KindProtocolError {
		t.Fatalf("unexpected result %+v", res)
	}
}
