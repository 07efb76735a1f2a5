// Package admission fornece adapters HTTP (net/http) para a camada de admissão
// que protege o serviço de geração (LLM) de sobrecarga e abuso.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (abuso, throttle global, fila, drenagem) sem net/http
//   - infra: implementações concretas (janelas em memória, fila, alertas, estatísticas)
//   - admission (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Extrai a chave do cliente (IP/header/XFF)
//  2. Detector de abuso: cliente bloqueado responde 429 e nada mais é tocado
//  3. Throttle global: com capacidade, chama o próximo handler sem modificar a requisição
//  4. Sem capacidade: cria uma tarefa, responde 429 {"status":"queued",...}
//     e o cliente acompanha por GET /check_queue?task_id=...
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como ABUSE_WINDOW, ABUSE_THRESHOLD, GLOBAL_CAPACITY e DRAIN_CADENCE.
package admission
