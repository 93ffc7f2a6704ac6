package transport

import (
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jabolina/natpeer/pkg/natpeer/types"
)

// UDPAdapter is the real-network transport.Adapter binding, built directly
// on net.UDPConn. Spec.md §1 explicitly places "the concrete transport
// binding to the operating system's UDP stack" out of scope for behavior,
// asking only that it satisfy the same narrow interface the simulator does
// — so this stays a thin wrapper rather than a fully-featured socket
// library (see DESIGN.md's transport entry for why this is stdlib net
// rather than a third-party transport like the teacher's relt).
//
// All inbound packets and all fired timers are funneled through a single
// `events` channel drained by one pump goroutine, so callbacks into the
// core.Peer are always serialized — the same single-writer property the
// simulator gives for free from being single-threaded (spec.md §5).
type UDPAdapter struct {
	address types.Address

	mu    sync.Mutex
	conns map[types.Port]*net.UDPConn

	onMessage OnMessageFunc
	events    chan func()
	stop      chan struct{}
	wg        sync.WaitGroup

	rng *rand.Rand
}

// NewUDPAdapter builds an adapter that reports address as its LocalAddress
// (the endpoint a Peer advertises in MsgLocal) and starts the event pump. It
// does not itself open a socket: Bind does, listening on all interfaces.
func NewUDPAdapter(address types.Address) *UDPAdapter {
	a := &UDPAdapter{
		address: address,
		conns:   make(map[types.Port]*net.UDPConn),
		events:  make(chan func(), 256),
		stop:    make(chan struct{}),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	a.wg.Add(1)
	go a.pump()
	return a
}

func (a *UDPAdapter) pump() {
	defer a.wg.Done()
	for {
		select {
		case <-a.stop:
			return
		case fn := <-a.events:
			fn()
		}
	}
}

// Close stops the pump and closes every bound socket.
func (a *UDPAdapter) Close() {
	close(a.stop)
	a.mu.Lock()
	for _, c := range a.conns {
		c.Close()
	}
	a.mu.Unlock()
	a.wg.Wait()
}

func (a *UDPAdapter) SetOnMessage(fn OnMessageFunc) { a.onMessage = fn }

func (a *UDPAdapter) LocalAddress() types.Address { return a.address }

func (a *UDPAdapter) Now() int64 { return time.Now().UnixMilli() }

func (a *UDPAdapter) Rand() *rand.Rand { return a.rng }

// Bind opens a UDP socket on port and starts a reader goroutine funneling
// datagrams into the shared events channel.
func (a *UDPAdapter) Bind(port types.Port) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.conns[port]; ok {
		return nil
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: int(port)})
	if err != nil {
		return errors.Wrapf(err, "bind udp port %d", port)
	}
	a.conns[port] = conn
	a.wg.Add(1)
	go a.readLoop(port, conn)
	return nil
}

func (a *UDPAdapter) readLoop(port types.Port, conn *net.UDPConn) {
	defer a.wg.Done()
	buf := make([]byte, 64*1024)
	for {
		n, raddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return // socket closed
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		from := udpAddrToEndpoint(raddr)
		select {
		case a.events <- func() {
			if a.onMessage != nil {
				a.onMessage(data, from, port, a.Now())
			}
		}:
		case <-a.stop:
			return
		}
	}
}

func (a *UDPAdapter) Send(data []byte, to types.Endpoint, fromPort types.Port) error {
	a.mu.Lock()
	conn, ok := a.conns[fromPort]
	a.mu.Unlock()
	if !ok {
		return errors.Errorf("port %d not bound", fromPort)
	}
	_, err := conn.WriteToUDP(data, endpointToUDPAddr(to))
	return err
}

// Timer schedules fn onto the shared events channel via time.AfterFunc,
// preserving the same delay==0-runs-synchronously, repeat>0-recurs contract
// as simnet.Node.Timer (spec.md §4.B) — minus the sleep-collapse rule, which
// is meaningless for a real, always-on socket.
func (a *UDPAdapter) Timer(delayMs int64, repeatMs int64, fn func()) {
	if delayMs == 0 {
		fn()
		if repeatMs > 0 {
			a.scheduleRepeating(repeatMs, fn)
		}
		return
	}
	time.AfterFunc(time.Duration(delayMs)*time.Millisecond, func() {
		select {
		case a.events <- fn:
		case <-a.stop:
		}
		if repeatMs > 0 {
			a.scheduleRepeating(repeatMs, fn)
		}
	})
}

func (a *UDPAdapter) scheduleRepeating(repeatMs int64, fn func()) {
	time.AfterFunc(time.Duration(repeatMs)*time.Millisecond, func() {
		select {
		case a.events <- fn:
		case <-a.stop:
			return
		}
		a.scheduleRepeating(repeatMs, fn)
	})
}

func udpAddrToEndpoint(a *net.UDPAddr) types.Endpoint {
	ip := a.IP.To4()
	if ip == nil {
		return types.Endpoint{}
	}
	return types.Endpoint{Address: types.NewAddress(ip[0], ip[1], ip[2], ip[3]), Port: types.Port(a.Port)}
}

func endpointToUDPAddr(e types.Endpoint) *net.UDPAddr {
	v := uint32(e.Address)
	ip := net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	return &net.UDPAddr{IP: ip, Port: int(e.Port)}
}
