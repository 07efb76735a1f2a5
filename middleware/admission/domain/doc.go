// Package domain define contratos e tipos de domínio da camada de admissão:
// janelas deslizantes, bloqueios por cliente, tarefas enfileiradas e alertas.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e trocar o armazenamento em
// memória por um compartilhado (ex: Redis) sem mexer nos pontos de chamada.
package domain
