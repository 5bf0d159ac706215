// Package services implements the driving ports of docqa.
//
// Ingestion turns an uploaded PDF into indexed chunks and records its
// lifecycle; Query retrieves relevant chunks and asks the LLM for a grounded
// answer. Both only talk to infrastructure through driven ports.
package services
