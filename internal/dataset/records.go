package dataset

// Parquet record types (on-disk schema). Dates are YYYY-MM-DD strings so the
// files stay readable by the upstream tooling.

type priceRecord struct {
	TradeDate string  `parquet:"trade_date"`
	TsCode    string  `parquet:"ts_code"`
	Close     float64 `parquet:"close"`
}

type weightRecord struct {
	TradeDate string  `parquet:"trade_date"`
	TsCode    string  `parquet:"ts_code"`
	Weight    float64 `parquet:"weight"`
}

type signalRecord struct {
	TradeDate   string   `parquet:"trade_date"`
	FinalSignal *float64 `parquet:"final_signal,optional"`
}

type benchmarkRecord struct {
	TradeDate      string  `parquet:"trade_date"`
	BenchmarkValue float64 `parquet:"benchmark_value"`
}

type valueRecord struct {
	TradeDate      string  `parquet:"trade_date"`
	PortfolioValue float64 `parquet:"portfolio_value"`
}

type holdingRecord struct {
	TradeDate string  `parquet:"trade_date"`
	TsCode    string  `parquet:"ts_code"`
	Shares    float64 `parquet:"shares"`
	Price     float64 `parquet:"price"`
	Value     float64 `parquet:"value"`
	Stale     bool    `parquet:"stale"`
}

type metricRecord struct {
	Metric    string   `parquet:"metric"`
	Key       string   `parquet:"key"`
	Value     *float64 `parquet:"value,optional"`
	Formatted string   `parquet:"formatted"`
	Unit      string   `parquet:"unit"`
	Reason    string   `parquet:"reason"`
}
