/*
Package webaudio allows to build and render audio graphs in real time.

Concept

The graph consists of nodes that are connected output to input. The
rendering is pull-based: the destination node asks its inputs for the
next render quantum, they ask their inputs and so on:

    Source - generates the signal, e.g. OscillatorNode;
    Processor - transforms the signal, e.g. GainNode;
    Destination - the rendering root of context;

Every node is processed once per quantum even if it has multiple outputs.
Cycles are allowed, the node that closes the cycle receives the silence of
current quantum.

Context

Context owns the nodes and renders them with Render function. It's called
by device sink for AudioContext and by StartRendering for OfflineContext:

    c, err := webaudio.NewOfflineContext(44100,
        webaudio.WithSampleRate(44100),
        webaudio.WithChannels(2),
    )
    defer c.Close()

    osc := c.NewOscillator()
    osc.Connect(c.Destination())
    osc.Start(0)
    osc.Stop(0.5)

    buf, err := c.StartRendering(ctx)

Control methods like Connect, Start or AudioParam automation can be
called from any goroutine. They are validated immediately and applied by
render goroutine at the start of the next quantum. Render doesn't block
and doesn't allocate once graph is built.

Events

Render goroutine reports ended sources and swallowed errors with events.
Events are delivered through SPSC channel to the context event loop which
logs them and calls EventHandler on thread pool goroutines.

Worklets

Worklet nodes run Lua functions registered in worklet.Engine. The engine
is referenced weakly. If it's collected, closed or busy, worklet nodes
render silence instead of blocking the render goroutine.
*/
package webaudio
