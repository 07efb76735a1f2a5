// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - MemoryWindowStore / MemoryBlockList / MemoryTaskQueue: estado em memória do processo
//   - ChanPool: semáforo simples para limitar chamadas simultâneas ao upstream
//   - AlertThrottle: token bucket por tipo de alerta usando golang.org/x/time/rate
//   - DiscordSink / LogSink / AsyncSink: entrega de alertas
//   - MemoryStatsStore / RedisStatsStore / PrometheusStats: estatísticas da admissão
package infra
