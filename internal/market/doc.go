// Package market fetches stock quotes, company profiles, and valuation
// metrics from a Finnhub-compatible REST API.
//
// Overview and Detail fan out upstream requests with errgroup and fail on the
// first error. Quotes are cached per symbol for a short TTL so a dashboard
// refresh does not hit the provider for every row.
//
// Errors:
//
//   - ErrInvalidSymbol: the symbol is not 1-10 of [A-Z.] after upper-casing
//   - ErrSymbolNotFound: the provider returned an empty quote
//   - ErrUpstream: transport failure, non-200 status, or undecodable body
package market
