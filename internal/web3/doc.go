// Package web3 houses blockchain connectivity types: the network
// configuration table (built-in chains plus YAML overrides), the Backend
// surface shared by live RPC clients, the simulated chain and test fakes, and
// the Client contract that the connection cache hands out.
package web3
