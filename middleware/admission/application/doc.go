// Package application contém os casos de uso da admissão: detecção de abuso,
// throttle global, enfileiramento e drenagem da fila.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(req, now) retorna uma Decision (admit/blocked/queued).
package application
