package feed

// CompositeSource pairs a REST client (OHLCV/HTF history) with a live
// websocket subscriber (order book/trades) into one feed.Source, the
// way the teacher wires its REST fetcher and kraken_ws subscriber
// behind a single exchange adapter.
type CompositeSource struct {
	OHLCVSource
	*Subscriber
}

// NewCompositeSource builds a Source from an OHLCVSource (a bare
// RESTClient, or one wrapped in a caching decorator) and a websocket
// subscriber.
func NewCompositeSource(ohlcv OHLCVSource, ws *Subscriber) *CompositeSource {
	return &CompositeSource{OHLCVSource: ohlcv, Subscriber: ws}
}
